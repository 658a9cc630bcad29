package insights

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innersight/internal/auth"
	"innersight/internal/core"
	"innersight/internal/fallback"
	"innersight/internal/llm"
	"innersight/internal/logger"
	"innersight/internal/observability"
	"innersight/internal/provider"
)

// MockTransport returns scripted responses and records every call.
type MockTransport struct {
	mu        sync.Mutex
	body      string
	bodies    map[core.TaskKind]string
	err       error
	calls     []mockCall
	callCount int
}

type mockCall struct {
	provider string
	prompt   string
	opts     llm.Options
}

func NewMockTransport(body string) *MockTransport {
	return &MockTransport{body: body, bodies: make(map[core.TaskKind]string)}
}

func (m *MockTransport) SetResponse(kind core.TaskKind, body string) {
	m.bodies[kind] = body
}

func (m *MockTransport) Send(ctx context.Context, cfg provider.Config, prompt string, opts llm.Options) (*llm.RawResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.calls = append(m.calls, mockCall{provider: cfg.ID, prompt: prompt, opts: opts})

	if m.err != nil {
		return nil, m.err
	}

	body := m.body
	for kind, b := range m.bodies {
		if kindOfPrompt(prompt) == kind {
			body = b
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return &llm.RawResponse{StatusCode: 200, Raw: []byte(body)}, nil
	}
	return &llm.RawResponse{StatusCode: 200, Body: decoded, Raw: []byte(body)}, nil
}

func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func kindOfPrompt(prompt string) core.TaskKind {
	switch {
	case strings.Contains(prompt, "Respond with ONLY the JSON object"):
		return core.TaskAnalysis
	case strings.HasPrefix(prompt, "Write a title"):
		return core.TaskTitle
	case strings.Contains(prompt, "alternative perspective"):
		return core.TaskPerspective
	default:
		return core.TaskReflection
	}
}

// MockTracker records analytics events.
type MockTracker struct {
	mu        sync.Mutex
	fallbacks []string
	insights  []string
}

func (m *MockTracker) TrackFallback(ctx context.Context, userID, task, provider, stage, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, userID+"|"+task+"|"+stage+"|"+reason)
	return nil
}

func (m *MockTracker) TrackInsight(ctx context.Context, userID, task, provider string, coercions int, latencyMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, userID+"|"+task+"|"+provider)
	return nil
}

type staticPersonalization struct {
	pctx *core.PersonalizationContext
}

func (s staticPersonalization) Personalization(ctx context.Context) (*core.PersonalizationContext, bool) {
	return s.pctx, s.pctx != nil
}

func newRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	r, err := provider.NewRegistry([]provider.Config{
		{ID: "deepseek", Endpoint: "https://deepseek.test/chat", Model: "deepseek-reasoner", Credential: "k", Reasoning: true},
		{ID: "openai", Endpoint: "https://openai.test/chat", Model: "gpt-4o-mini", Credential: "k"},
	}, "openai")
	require.NoError(t, err)
	return r
}

func newService(t *testing.T, tr llm.Transport, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return NewService(newRegistry(t), tr, opts...)
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}})
	return string(b)
}

func TestNarrativeFromDataEnvelope(t *testing.T) {
	tr := NewMockTransport(`{"data":{"choices":[{"message":{"content":"Hello there"}}]}}`)
	svc := newService(t, tr)

	report := svc.Run(context.Background(), core.TaskReflection, "I had a long day.")
	assert.Equal(t, "Hello there", report.Text)
	assert.Equal(t, SourceModel, report.Source)
	assert.Equal(t, "data.choices[0].message.content", report.Shape)
	assert.Equal(t, "Hello there", svc.Reflect(context.Background(), "I had a long day."))
}

func TestAnalysisFromReasoningContent(t *testing.T) {
	body := `{"choices":[{"message":{"content":"","reasoning_content":"{\"themes\":[],\"emotions\":[{\"name\":\"Calm\",\"percentage\":50},{\"name\":\"Tired\",\"percentage\":30}],\"perspective\":\"ok\"}"}}]}`
	tr := NewMockTransport(body)
	svc := newService(t, tr)

	report := svc.Run(context.Background(), core.TaskAnalysis, "entry", WithProvider("deepseek"))
	require.Equal(t, SourceModel, report.Source, "unexpected failure: %v", report.Err)

	got := report.Analysis
	assert.Empty(t, got.Themes)
	require.Len(t, got.Emotions, 2)
	assert.Equal(t, 100, got.Emotions[0].Percentage+got.Emotions[1].Percentage)
	assert.Greater(t, got.Emotions[0].Percentage, got.Emotions[1].Percentage)
	assert.Equal(t, "ok", got.Perspective)
	assert.NotEmpty(t, report.Notes)
	assert.Equal(t, "deepseek", report.Provider)
	assert.Equal(t, "openai", svc.Registry().Active().ID, "per-call override must not switch the active provider")
}

func TestReasoningContentIgnoredForNonReasoningProvider(t *testing.T) {
	body := `{"choices":[{"message":{"content":"","reasoning_content":"{\"perspective\":\"ok\"}"}}]}`
	svc := newService(t, NewMockTransport(body))

	report := svc.Run(context.Background(), core.TaskAnalysis, "entry")
	assert.Equal(t, SourceFallback, report.Source)
	assert.Equal(t, StageExtract, report.Stage)
}

func TestTimeoutReturnsFallbackAnalysis(t *testing.T) {
	tr := NewMockTransport("")
	tr.err = &llm.TransportError{Kind: llm.KindTimeout, Err: context.DeadlineExceeded}
	tracker := &MockTracker{}
	svc := newService(t, tr, WithTracker(tracker))

	ctx := auth.WithUserID(context.Background(), "user-1")
	report := svc.Run(ctx, core.TaskAnalysis, "entry")

	assert.Equal(t, fallback.New().Analysis(), report.Analysis)
	assert.Equal(t, SourceFallback, report.Source)
	assert.Equal(t, StageTransport, report.Stage)
	assert.ErrorIs(t, report.Err, context.DeadlineExceeded)
	assert.Equal(t, []string{"user-1|structured-analysis|transport|timeout"}, tracker.fallbacks)
}

func TestFencedJSONAfterProse(t *testing.T) {
	content := "Sure! ```json\n{\"themes\":[{\"name\":\"Work\",\"count\":7,\"breakdown\":\"Deadlines\",\"insights\":[\"Busy week\"],\"emoji\":\"💼\"}],\"emotions\":[{\"name\":\"Stressed\",\"percentage\":100}],\"perspective\":\"You are doing a lot.\"}\n```"
	svc := newService(t, NewMockTransport(chatBody(content)))

	got := svc.Analyze(context.Background(), "entry")
	require.Len(t, got.Themes, 1)
	assert.Equal(t, "Work", got.Themes[0].Name)
	assert.Equal(t, 5, got.Themes[0].Count)
	assert.Equal(t, "You are doing a lot.", got.Perspective)
}

func TestMissingMarkerFallsBack(t *testing.T) {
	content := `{"themes":[{"name":"Work","count":2}],"emotions":[{"name":"Calm","percentage":100}]}`
	svc := newService(t, NewMockTransport(chatBody(content)))

	var report Report
	require.NotPanics(t, func() {
		report = svc.Run(context.Background(), core.TaskAnalysis, "entry")
	})
	assert.Equal(t, fallback.New().Analysis(), report.Analysis)
	assert.Equal(t, StageDecode, report.Stage)
}

func TestExtractionFailureFallsBack(t *testing.T) {
	svc := newService(t, NewMockTransport(`{"choices":[{"finish_reason":"length"}]}`))

	report := svc.Run(context.Background(), core.TaskPerspective, "entry")
	assert.Equal(t, fallback.Perspective, report.Text)
	assert.Equal(t, StageExtract, report.Stage)
}

func TestHTTPStatusFallsBackToDatedTitle(t *testing.T) {
	tr := NewMockTransport("")
	tr.err = &llm.TransportError{Kind: llm.HTTPStatusKind(503), StatusCode: 503}
	fb := &fallback.Provider{Now: func() time.Time { return time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC) }}
	svc := newService(t, tr, WithFallback(fb))

	assert.Equal(t, "Journal Entry - March 4, 2026", svc.Title(context.Background(), "entry"))
}

func TestTitleIsCleaned(t *testing.T) {
	svc := newService(t, NewMockTransport(chatBody("Title: \"A Quiet Morning.\"\nextra line")))
	assert.Equal(t, "A Quiet Morning", svc.Title(context.Background(), "entry"))
}

func TestBlankTitleFallsBack(t *testing.T) {
	svc := newService(t, NewMockTransport(chatBody(`""`)))
	report := svc.Run(context.Background(), core.TaskTitle, "entry")
	assert.Equal(t, SourceFallback, report.Source)
	assert.True(t, strings.HasPrefix(report.Text, "Journal Entry - "))
}

func TestEmptyEntryShortCircuits(t *testing.T) {
	tr := NewMockTransport(chatBody("never"))
	tracker := &MockTracker{}
	svc := newService(t, tr, WithTracker(tracker))

	report := svc.Run(context.Background(), core.TaskAnalysis, "   \n")
	assert.Equal(t, SourceFallback, report.Source)
	assert.Equal(t, StageInput, report.Stage)
	assert.Equal(t, 0, tr.Calls())
	assert.Empty(t, tracker.fallbacks)
}

func TestUnknownProviderFallsBack(t *testing.T) {
	tr := NewMockTransport(chatBody("never"))
	svc := newService(t, tr)

	report := svc.Run(context.Background(), core.TaskReflection, "entry", WithProvider("mistral"))
	assert.Equal(t, fallback.Reflection, report.Text)
	assert.Equal(t, StageProvider, report.Stage)
	assert.ErrorIs(t, report.Err, provider.ErrUnknownProvider)
	assert.Equal(t, 0, tr.Calls())
}

func TestGenerationOptionsPerTask(t *testing.T) {
	tr := NewMockTransport(chatBody(`{"perspective":"p"}`))
	svc := newService(t, tr)

	svc.Analyze(context.Background(), "entry")
	svc.Reflect(context.Background(), "entry")

	require.Len(t, tr.calls, 2)
	analysis, narrative := tr.calls[0].opts, tr.calls[1].opts
	require.NotNil(t, analysis.Temperature)
	require.NotNil(t, narrative.Temperature)
	assert.Less(t, *analysis.Temperature, *narrative.Temperature)
	assert.Greater(t, analysis.MaxTokens, narrative.MaxTokens)
}

func TestPersonalizationSource(t *testing.T) {
	tr := NewMockTransport(chatBody("ok"))
	pctx := &core.PersonalizationContext{Goals: []string{"run a marathon"}}
	svc := newService(t, tr, WithPersonalization(staticPersonalization{pctx: pctx}))

	svc.Reflect(context.Background(), "entry")
	assert.Contains(t, tr.calls[0].prompt, "run a marathon")

	override := &core.PersonalizationContext{Challenges: []string{"insomnia"}}
	svc.Reflect(context.Background(), "entry", WithPersonalizationContext(override), WithoutCache())
	assert.Contains(t, tr.calls[1].prompt, "insomnia")
	assert.NotContains(t, tr.calls[1].prompt, "run a marathon")
}

func TestCacheServesRepeatsButNotFallbacks(t *testing.T) {
	tr := NewMockTransport(chatBody(`{"themes":[],"emotions":[{"name":"Joy","percentage":100}],"perspective":"p"}`))
	svc := newService(t, tr, WithCache(16, time.Minute))
	ctx := context.Background()

	first := svc.Run(ctx, core.TaskAnalysis, "same entry")
	second := svc.Run(ctx, core.TaskAnalysis, "same entry")
	assert.Equal(t, SourceModel, first.Source)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, 1, tr.Calls())

	second.Analysis.Emotions[0].Percentage = 0
	third := svc.Run(ctx, core.TaskAnalysis, "same entry")
	assert.Equal(t, 100, third.Analysis.Emotions[0].Percentage, "cached values must not be shared")

	svc.Run(ctx, core.TaskAnalysis, "same entry", WithoutCache())
	assert.Equal(t, 2, tr.Calls())

	tr.err = &llm.TransportError{Kind: llm.KindNetwork, Err: errors.New("down")}
	svc.Run(ctx, core.TaskTitle, "other entry")
	svc.Run(ctx, core.TaskTitle, "other entry")
	assert.Equal(t, 4, tr.Calls())
	assert.Equal(t, 1, svc.cache.size())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewMockTransport(`{"unexpected":true}`)
	svc := newService(t, tr, WithMetrics(observability.MustNewMetrics(reg)))

	svc.Reflect(context.Background(), "entry")

	failures, err := testutil.GatherAndCount(reg, "innersight_insights_stage_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	requests, err := testutil.GatherAndCount(reg, "innersight_insights_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestInsightsRunsBothTasks(t *testing.T) {
	tr := NewMockTransport(chatBody("A gentle reflection."))
	tr.SetResponse(core.TaskAnalysis, chatBody(`{"themes":[],"emotions":[{"name":"Calm","percentage":100}],"perspective":"p"}`))
	tracker := &MockTracker{}
	svc := newService(t, tr, WithTracker(tracker))

	analysis, reflection := svc.Insights(context.Background(), "entry")
	assert.Equal(t, SourceModel, analysis.Source)
	assert.Equal(t, "p", analysis.Analysis.Perspective)
	assert.Equal(t, "A gentle reflection.", reflection.Text)
	assert.Equal(t, 2, tr.Calls())
	assert.Len(t, tracker.insights, 2)
}

func TestConcurrentRunsWithProviderSwitching(t *testing.T) {
	tr := NewMockTransport(chatBody("ok"))
	svc := newService(t, tr)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				svc.Registry().SetActive("deepseek")
			} else {
				svc.Registry().SetActive("openai")
			}
			assert.Equal(t, "ok", svc.Reflect(context.Background(), "entry"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, tr.Calls())
}

func TestInvalidTaskKindTreatedAsReflection(t *testing.T) {
	svc := newService(t, NewMockTransport(chatBody("text")))
	report := svc.Run(context.Background(), core.TaskKind("poem"), "entry")
	assert.Equal(t, core.TaskReflection, report.Task)
	assert.Equal(t, "text", report.Text)
}

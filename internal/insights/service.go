// Package insights runs the full model pipeline for each task kind and
// guarantees a well-formed result for every call.
package insights

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"innersight/internal/auth"
	"innersight/internal/core"
	"innersight/internal/decode"
	"innersight/internal/extract"
	"innersight/internal/fallback"
	"innersight/internal/llm"
	"innersight/internal/normalize"
	"innersight/internal/observability"
	"innersight/internal/prompts"
	"innersight/internal/provider"
)

// Pipeline stages, used in logs, metrics and Report.Stage.
const (
	StageInput     = "input"
	StageProvider  = "provider"
	StageTransport = "transport"
	StageExtract   = "extract"
	StageDecode    = "decode"
)

// Source says where a result came from.
type Source string

const (
	SourceModel    Source = observability.OutcomeModel
	SourceFallback Source = observability.OutcomeFallback
	SourceCache    Source = observability.OutcomeCache
)

// PersonalizationSource returns the current user's personalization, if any.
type PersonalizationSource interface {
	Personalization(ctx context.Context) (*core.PersonalizationContext, bool)
}

// Tracker receives product analytics events.
type Tracker interface {
	TrackFallback(ctx context.Context, userID, task, provider, stage, reason string) error
	TrackInsight(ctx context.Context, userID, task, provider string, coercions int, latencyMs int64) error
}

// Report describes how one call was answered. Text is set for narrative
// tasks, Analysis for the structured task.
type Report struct {
	Task     core.TaskKind       `json:"task"`
	Provider string              `json:"provider"`
	Source   Source              `json:"source"`
	Text     string              `json:"text,omitempty"`
	Analysis core.AnalysisResult `json:"analysis"`
	Notes    []normalize.Note    `json:"notes,omitempty"`
	Shape    string              `json:"shape,omitempty"`    // extractor matcher that found the text
	Repaired bool                `json:"repaired,omitempty"` // decoder used the JSON repair pass
	Stage    string              `json:"stage,omitempty"`    // failing stage when Source is fallback
	Err      error               `json:"-"`
}

// Service is safe for concurrent use.
type Service struct {
	registry        *provider.Registry
	transport       llm.Transport
	extractor       *extract.Extractor
	decoder         *decode.Decoder
	normalizer      *normalize.Normalizer
	fallback        *fallback.Provider
	generation      Generation
	personalization PersonalizationSource
	tracker         Tracker
	metrics         *observability.Metrics
	cache           *resultCache
	log             *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithPersonalization(p PersonalizationSource) Option {
	return func(s *Service) { s.personalization = p }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithGeneration(g Generation) Option {
	return func(s *Service) { s.generation = g }
}

func WithFallback(f *fallback.Provider) Option {
	return func(s *Service) { s.fallback = f }
}

func WithExtractor(e *extract.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithDecoder(d *decode.Decoder) Option {
	return func(s *Service) { s.decoder = d }
}

// WithCache enables result caching for size entries kept for ttl.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = newResultCache(size, ttl) }
}

// NewService wires the pipeline around registry and transport.
func NewService(registry *provider.Registry, transport llm.Transport, opts ...Option) *Service {
	s := &Service{
		registry:   registry,
		transport:  transport,
		extractor:  extract.New(),
		decoder:    decode.New(),
		fallback:   fallback.New(),
		generation: DefaultGeneration(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New(normalize.WithDefaultEmotions(s.fallback.Analysis().Emotions))
	}
	return s
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	providerID      string
	personalization *core.PersonalizationContext
	skipCache       bool
}

// WithProvider routes one call to providerID without changing the active provider.
func WithProvider(providerID string) CallOption {
	return func(o *callOptions) { o.providerID = providerID }
}

// WithPersonalizationContext uses p instead of the configured source.
func WithPersonalizationContext(p *core.PersonalizationContext) CallOption {
	return func(o *callOptions) { o.personalization = p }
}

// WithoutCache bypasses the result cache for one call.
func WithoutCache() CallOption {
	return func(o *callOptions) { o.skipCache = true }
}

// Reflect returns a free-form reflection on entry.
func (s *Service) Reflect(ctx context.Context, entry string, opts ...CallOption) string {
	return s.Run(ctx, core.TaskReflection, entry, opts...).Text
}

// Title returns a short title for entry.
func (s *Service) Title(ctx context.Context, entry string, opts ...CallOption) string {
	return s.Run(ctx, core.TaskTitle, entry, opts...).Text
}

// Perspective returns an alternative perspective on entry.
func (s *Service) Perspective(ctx context.Context, entry string, opts ...CallOption) string {
	return s.Run(ctx, core.TaskPerspective, entry, opts...).Text
}

// Analyze returns the structured analysis of entry.
func (s *Service) Analyze(ctx context.Context, entry string, opts ...CallOption) core.AnalysisResult {
	return s.Run(ctx, core.TaskAnalysis, entry, opts...).Analysis
}

// Insights runs structured analysis and reflection for the same entry concurrently.
func (s *Service) Insights(ctx context.Context, entry string, opts ...CallOption) (Report, Report) {
	var analysis, reflection Report
	var g errgroup.Group
	g.Go(func() error {
		analysis = s.Run(ctx, core.TaskAnalysis, entry, opts...)
		return nil
	})
	g.Go(func() error {
		reflection = s.Run(ctx, core.TaskReflection, entry, opts...)
		return nil
	})
	_ = g.Wait()
	return analysis, reflection
}

// Run executes one task end to end. It never fails: any stage failure is
// logged and replaced with fallback content.
func (s *Service) Run(ctx context.Context, kind core.TaskKind, entry string, opts ...CallOption) (report Report) {
	start := time.Now()
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	report = Report{Task: kind, Provider: co.providerID}
	defer func() {
		s.metrics.ObserveRequest(string(kind), report.Provider, string(report.Source), time.Since(start))
	}()

	if !kind.Valid() {
		kind = core.TaskReflection
		report.Task = kind
	}

	if strings.TrimSpace(entry) == "" {
		return s.fail(ctx, report, StageInput, "empty-entry", nil)
	}

	cfg, err := s.registry.Resolve(co.providerID)
	if err != nil {
		return s.fail(ctx, report, StageProvider, "unknown-provider", err)
	}
	report.Provider = cfg.ID

	pctx := co.personalization
	if pctx == nil && s.personalization != nil {
		if p, ok := s.personalization.Personalization(ctx); ok {
			pctx = p
		}
	}
	prompt := prompts.Build(kind, entry, pctx)

	key := cacheKey(kind, cfg, prompt)
	if !co.skipCache {
		if hit, ok := s.cache.get(key); ok {
			report.Source = SourceCache
			report.Text = hit.Text
			report.Analysis = hit.Analysis
			return report
		}
	}

	raw, err := s.transport.Send(ctx, cfg, prompt, s.generation.For(kind))
	if err != nil {
		reason := "network"
		if te, ok := llm.AsTransportError(err); ok {
			reason = string(te.Kind)
		}
		return s.fail(ctx, report, StageTransport, reason, err)
	}

	out := s.extractor.Extract(raw, cfg.Reasoning)
	if !out.OK() {
		return s.fail(ctx, report, StageExtract, string(out.Failure.Reason), out.Err())
	}
	report.Shape = out.Shape

	if kind.IsStructured() {
		decoded, err := s.decoder.Decode(out.Text)
		if err != nil {
			reason := string(decode.ReasonMalformed)
			if f, ok := decode.AsFailure(err); ok {
				reason = string(f.Reason)
			}
			return s.fail(ctx, report, StageDecode, reason, err)
		}
		report.Repaired = decoded.Repaired

		result, notes := s.normalizer.Normalize(decoded.Object)
		report.Analysis = result
		report.Notes = notes
		s.logNotes(kind, cfg.ID, notes)
	} else {
		text := strings.TrimSpace(out.Text)
		if kind == core.TaskTitle {
			text = CleanTitle(text)
		}
		if text == "" {
			return s.fail(ctx, report, StageExtract, string(extract.ReasonNoShape), nil)
		}
		report.Text = text
	}

	report.Source = SourceModel
	s.cache.put(key, cachedResult{Text: report.Text, Analysis: report.Analysis})
	if s.tracker != nil {
		if err := s.tracker.TrackInsight(ctx, auth.UserID(ctx), string(kind), cfg.ID, len(report.Notes), time.Since(start).Milliseconds()); err != nil {
			s.log.Debug("Failed to track insight", "error", err)
		}
	}
	return report
}

// fail fills report with fallback content for its task and records why.
func (s *Service) fail(ctx context.Context, report Report, stage, reason string, err error) Report {
	report.Source = SourceFallback
	report.Stage = stage
	report.Err = err
	report.Shape = ""
	report.Repaired = false
	report.Notes = nil

	if report.Task.IsStructured() {
		report.Analysis = s.fallback.Analysis()
		report.Text = ""
	} else {
		report.Text = s.fallback.Text(report.Task)
	}

	args := []any{"task", report.Task, "provider", report.Provider, "stage", stage, "reason", reason}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if stage == StageInput {
		s.log.Debug("Empty entry, serving fallback content", args...)
	} else {
		s.log.Warn("Insight pipeline failed, serving fallback content", args...)
	}

	s.metrics.RecordStageFailure(string(report.Task), stage, reason)
	if s.tracker != nil && stage != StageInput {
		if terr := s.tracker.TrackFallback(ctx, auth.UserID(ctx), string(report.Task), report.Provider, stage, reason); terr != nil {
			s.log.Debug("Failed to track fallback", "error", terr)
		}
	}
	return report
}

func (s *Service) logNotes(kind core.TaskKind, providerID string, notes []normalize.Note) {
	for _, n := range notes {
		s.metrics.RecordCoercion(string(n.Code))
		s.log.Debug("Coerced model output", "task", kind, "provider", providerID, "path", n.Path, "code", n.Code, "detail", n.Detail)
	}
}

// Registry exposes the provider registry the service routes through.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

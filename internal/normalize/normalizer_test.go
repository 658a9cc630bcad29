package normalize

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innersight/internal/core"
)

func decodeObj(t *testing.T, s string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &obj))
	return obj
}

func sumPercentages(emotions []core.Emotion) int {
	total := 0
	for _, e := range emotions {
		total += e.Percentage
	}
	return total
}

func hasNote(ns []Note, path string, code NoteCode) bool {
	for _, n := range ns {
		if n.Path == path && n.Code == code {
			return true
		}
	}
	return false
}

func TestNormalizeReasoningScenario(t *testing.T) {
	obj := decodeObj(t, `{"themes":[],"emotions":[{"name":"Calm","percentage":50},{"name":"Tired","percentage":30}],"perspective":"ok"}`)

	got, ns := New().Normalize(obj)

	assert.Empty(t, got.Themes)
	assert.NotNil(t, got.Themes)
	require.Len(t, got.Emotions, 2)
	assert.Equal(t, 63, got.Emotions[0].Percentage)
	assert.Equal(t, 37, got.Emotions[1].Percentage)
	assert.Equal(t, ColorFor("Calm"), got.Emotions[0].Color)
	assert.Equal(t, ColorFor("Tired"), got.Emotions[1].Color)
	assert.Equal(t, "ok", got.Perspective)

	assert.True(t, hasNote(ns, "emotions", NoteRescaled))
	assert.True(t, hasNote(ns, "emotions[0].color", NoteDerived))
}

func TestThemeCountAlwaysInRange(t *testing.T) {
	testCases := []struct {
		raw  string
		want int
	}{
		{`-3`, 1},
		{`0`, 1},
		{`1`, 1},
		{`3`, 3},
		{`2.6`, 3},
		{`5`, 5},
		{`9`, 5},
		{`1e9`, 5},
		{`"4"`, 4},
		{`"lots"`, 1},
		{`true`, 1},
		{`null`, 1},
		{`[2]`, 1},
		{`{"n":2}`, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			obj := decodeObj(t, fmt.Sprintf(`{"themes":[{"name":"Work","count":%s,"breakdown":"b","insights":["i"]}],"perspective":"p"}`, tc.raw))
			got, _ := New().Normalize(obj)
			require.Len(t, got.Themes, 1)
			assert.Equal(t, tc.want, got.Themes[0].Count)
			assert.GreaterOrEqual(t, got.Themes[0].Count, MinThemeCount)
			assert.LessOrEqual(t, got.Themes[0].Count, MaxThemeCount)
		})
	}
}

func TestThemePlaceholders(t *testing.T) {
	obj := decodeObj(t, `{"themes":[{"count":2,"insights":["", "  ", 7]}, "junk", {"name":"  Rest ","breakdown":"Sleep","insights":"one idea","emoji":"😴"}],"perspective":"p"}`)

	got, ns := New().Normalize(obj)
	require.Len(t, got.Themes, 2)

	first := got.Themes[0]
	assert.Equal(t, PlaceholderThemeName, first.Name)
	assert.Equal(t, PlaceholderBreakdown, first.Breakdown)
	assert.Equal(t, []string{PlaceholderInsight}, first.Insights)
	assert.Equal(t, "", first.Emoji)

	second := got.Themes[1]
	assert.Equal(t, "Rest", second.Name)
	assert.Equal(t, []string{"one idea"}, second.Insights)
	assert.Equal(t, "😴", second.Emoji)
	assert.Equal(t, MinThemeCount, second.Count)

	assert.True(t, hasNote(ns, "themes[0].name", NoteDefaulted))
	assert.True(t, hasNote(ns, "themes[0].insights[2]", NoteDropped))
	assert.True(t, hasNote(ns, "themes[0].insights", NoteDefaulted))
	assert.True(t, hasNote(ns, "themes[1]", NoteDropped))
	assert.True(t, hasNote(ns, "themes[2].insights", NoteCoerced))
}

func TestEmotionsSumToHundred(t *testing.T) {
	testCases := []struct {
		name string
		pcts []any
	}{
		{"already 100", []any{60, 40}},
		{"under", []any{50, 30}},
		{"over", []any{80, 70, 50}},
		{"thirds", []any{1, 1, 1}},
		{"many small", []any{1, 1, 1, 1, 1, 1, 1}},
		{"single", []any{37}},
		{"huge single", []any{250}},
		{"negative clamped", []any{-20, 50, 30}},
		{"strings", []any{"45%", "45", 5}},
		{"half shares", []any{49.5, 49.5, 0.5, 0.5}},
		{"cascade", []any{3, 3, 3, 3, 3, 3, 1}},
		{"overshoot", []any{1, 1, 1, 1, 1, 1, 1, 1, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var emotions []any
			for i, p := range tc.pcts {
				emotions = append(emotions, map[string]any{"name": fmt.Sprintf("e%d", i), "percentage": p})
			}
			raw, err := json.Marshal(map[string]any{"emotions": emotions, "perspective": "p"})
			require.NoError(t, err)

			got, _ := New().Normalize(decodeObj(t, string(raw)))
			require.Len(t, got.Emotions, len(tc.pcts))
			assert.Equal(t, 100, sumPercentages(got.Emotions))
			for _, e := range got.Emotions {
				assert.GreaterOrEqual(t, e.Percentage, 0)
				assert.LessOrEqual(t, e.Percentage, 100)
			}
		})
	}
}

func TestEmotionsAllZeroRedistributed(t *testing.T) {
	obj := decodeObj(t, `{"emotions":[{"name":"a","percentage":0},{"name":"b","percentage":"none"},{"name":"c","percentage":-4}],"perspective":"p"}`)

	got, ns := New().Normalize(obj)
	require.Len(t, got.Emotions, 3)
	assert.Equal(t, 33, got.Emotions[0].Percentage)
	assert.Equal(t, 33, got.Emotions[1].Percentage)
	assert.Equal(t, 34, got.Emotions[2].Percentage)
	assert.True(t, hasNote(ns, "emotions", NoteRedistributed))
	assert.True(t, hasNote(ns, "emotions[1].percentage", NoteDefaulted))
	assert.True(t, hasNote(ns, "emotions[2].percentage", NoteClamped))
}

func TestEmotionsUntouchedWhenValid(t *testing.T) {
	obj := decodeObj(t, `{"emotions":[{"name":"Joy","percentage":70,"color":"#ABCDEF"},{"name":"Worry","percentage":30,"color":"123456"}],"perspective":"p"}`)

	got, ns := New().Normalize(obj)
	assert.Equal(t, 70, got.Emotions[0].Percentage)
	assert.Equal(t, "#ABCDEF", got.Emotions[0].Color)
	assert.Equal(t, "#123456", got.Emotions[1].Color)
	assert.False(t, hasNote(ns, "emotions", NoteRescaled))
	assert.True(t, hasNote(ns, "emotions[1].color", NoteCoerced))
}

func TestEmotionsMissingUsesDefaults(t *testing.T) {
	defaults := []core.Emotion{{Name: "Calm", Percentage: 60, Color: "#06B6D4"}, {Name: "Hopeful", Percentage: 40, Color: "#10B981"}}

	for _, body := range []string{`{"perspective":"p"}`, `{"emotions":[],"perspective":"p"}`, `{"emotions":"happy","perspective":"p"}`} {
		got, ns := New(WithDefaultEmotions(defaults)).Normalize(decodeObj(t, body))
		assert.Equal(t, defaults, got.Emotions, body)
		assert.True(t, hasNote(ns, "emotions", NoteDefaulted), body)
	}
}

func TestEmotionNameAndInvalidColor(t *testing.T) {
	obj := decodeObj(t, `{"emotions":[{"percentage":100,"color":"blue"}],"perspective":"p"}`)
	got, ns := New().Normalize(obj)
	assert.Equal(t, PlaceholderEmotionName, got.Emotions[0].Name)
	assert.Equal(t, DefaultColor, got.Emotions[0].Color)
	assert.True(t, hasNote(ns, "emotions[0].color", NoteDerived))
}

func TestPerspectiveDefaulted(t *testing.T) {
	for _, body := range []string{`{}`, `{"perspective":"   "}`, `{"perspective":{"text":"x"}}`} {
		got, ns := New().Normalize(decodeObj(t, body))
		assert.Equal(t, DefaultPerspective, got.Perspective, body)
		assert.True(t, hasNote(ns, "perspective", NoteDefaulted), body)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"themes":[{"name":" Work ","count":9,"breakdown":"","insights":[" a ",""],"emoji":" 💼"}],"emotions":[{"name":"Calm","percentage":50},{"name":"Tired","percentage":30}],"perspective":" ok "}`,
		`{"themes":"bad","emotions":[{"name":"a","percentage":0},{"name":"b","percentage":0},{"name":"c","percentage":0}]}`,
		`{"emotions":[{"name":"x","percentage":49.5},{"name":"y","percentage":49.5},{"name":"z","percentage":0.5},{"name":"w","percentage":0.5}],"perspective":"p"}`,
	}

	n := New()
	for _, in := range inputs {
		first, _ := n.Normalize(decodeObj(t, in))
		second, ns := n.NormalizeResult(first)
		assert.Equal(t, first, second, in)
		assert.Empty(t, ns, in)

		third, _ := n.NormalizeResult(second)
		assert.Equal(t, second, third, in)
	}
}

func TestNormalizeResultDoesNotMutateInput(t *testing.T) {
	in := core.AnalysisResult{
		Themes:   []core.Theme{{Name: "", Count: 0, Insights: nil}},
		Emotions: []core.Emotion{{Name: "Joy", Percentage: 10}},
	}
	out, ns := New().NormalizeResult(in)

	assert.Equal(t, "", in.Themes[0].Name)
	assert.Equal(t, 10, in.Emotions[0].Percentage)
	assert.Equal(t, PlaceholderThemeName, out.Themes[0].Name)
	assert.Equal(t, 100, out.Emotions[0].Percentage)
	assert.NotEmpty(t, ns)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, ColorFor("calm"), ColorFor("Feeling CALM"))
	assert.Equal(t, "#3B82F6", ColorFor("Unhappy"))
	assert.Equal(t, "#F59E0B", ColorFor("Anxiety"))
	assert.Equal(t, DefaultColor, ColorFor("Zorblax"))
}

func TestNoteString(t *testing.T) {
	assert.Equal(t, "perspective: defaulted", Note{Path: "perspective", Code: NoteDefaulted}.String())
	assert.Equal(t, "emotions: rescaled (sum was 80)", Note{Path: "emotions", Code: NoteRescaled, Detail: "sum was 80"}.String())
}

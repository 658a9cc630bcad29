// Package normalize turns a decoded, untrusted analysis object into an
// AnalysisResult that satisfies every domain invariant, recording each
// coercion it had to make.
package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"innersight/internal/core"
)

const (
	MinThemeCount = 1
	MaxThemeCount = 5

	PlaceholderThemeName   = "Untitled theme"
	PlaceholderBreakdown   = "This theme came up in your entry."
	PlaceholderInsight     = "Take a moment to notice how this theme shows up in your day."
	PlaceholderEmotionName = "Unlabeled"
	DefaultPerspective     = "Every entry you write is a step toward understanding yourself a little better."
)

// Normalizer coerces decoded objects into valid results. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	defaultEmotions []core.Emotion
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDefaultEmotions sets the emotions used when a reply contains none.
// The set must already sum to 100.
func WithDefaultEmotions(emotions []core.Emotion) Option {
	return func(n *Normalizer) {
		n.defaultEmotions = append([]core.Emotion(nil), emotions...)
	}
}

// New returns a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		defaultEmotions: []core.Emotion{{Name: "Reflective", Percentage: 100, Color: "#8B5CF6"}},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds an AnalysisResult from a decoded JSON object.
func (n *Normalizer) Normalize(obj map[string]any) (core.AnalysisResult, []Note) {
	var ns notes
	result := core.AnalysisResult{
		Themes:      decodeThemes(obj["themes"], &ns),
		Emotions:    decodeEmotions(obj["emotions"], &ns),
		Perspective: decodePerspective(obj["perspective"], &ns),
	}
	n.enforce(&result, &ns)
	return result, ns
}

// NormalizeResult re-applies the invariants to an already typed result.
// Normalizing a normalized result returns it unchanged with no notes.
func (n *Normalizer) NormalizeResult(r core.AnalysisResult) (core.AnalysisResult, []Note) {
	var ns notes
	out := r.Clone()
	if out.Themes == nil {
		out.Themes = []core.Theme{}
	}
	n.enforce(&out, &ns)
	return out, ns
}

func (n *Normalizer) enforce(r *core.AnalysisResult, ns *notes) {
	for i := range r.Themes {
		fixTheme(fmt.Sprintf("themes[%d]", i), &r.Themes[i], ns)
	}

	if len(r.Emotions) == 0 {
		ns.add("emotions", NoteDefaulted, "no emotions in reply")
		r.Emotions = append([]core.Emotion(nil), n.defaultEmotions...)
	}
	for i := range r.Emotions {
		fixEmotion(fmt.Sprintf("emotions[%d]", i), &r.Emotions[i], ns)
	}
	balancePercentages(r.Emotions, ns)

	if strings.TrimSpace(r.Perspective) == "" {
		ns.add("perspective", NoteDefaulted, "")
		r.Perspective = DefaultPerspective
	} else {
		r.Perspective = strings.TrimSpace(r.Perspective)
	}
}

func decodeThemes(raw any, ns *notes) []core.Theme {
	themes := []core.Theme{}
	if raw == nil {
		ns.add("themes", NoteDefaulted, "missing")
		return themes
	}
	items, ok := raw.([]any)
	if !ok {
		ns.add("themes", NoteDefaulted, "expected a list, got %T", raw)
		return themes
	}

	for i, item := range items {
		path := fmt.Sprintf("themes[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			ns.add(path, NoteDropped, "expected an object, got %T", item)
			continue
		}

		t := core.Theme{
			Name:      stringField(obj["name"]),
			Breakdown: stringField(obj["breakdown"]),
			Emoji:     stringField(obj["emoji"]),
			Insights:  stringList(obj["insights"], path+".insights", ns),
		}
		if count, ok := toNumber(obj["count"]); ok {
			t.Count = int(math.Round(count))
			if _, isFloat := obj["count"].(float64); !isFloat {
				ns.add(path+".count", NoteCoerced, "from %T", obj["count"])
			}
		} else {
			ns.add(path+".count", NoteDefaulted, "not a number: %v", obj["count"])
			t.Count = MinThemeCount
		}
		themes = append(themes, t)
	}
	return themes
}

func fixTheme(path string, t *core.Theme, ns *notes) {
	if t.Name = strings.TrimSpace(t.Name); t.Name == "" {
		ns.add(path+".name", NoteDefaulted, "")
		t.Name = PlaceholderThemeName
	}
	if t.Count < MinThemeCount || t.Count > MaxThemeCount {
		clamped := clamp(t.Count, MinThemeCount, MaxThemeCount)
		ns.add(path+".count", NoteClamped, "%d -> %d", t.Count, clamped)
		t.Count = clamped
	}
	if t.Breakdown = strings.TrimSpace(t.Breakdown); t.Breakdown == "" {
		ns.add(path+".breakdown", NoteDefaulted, "")
		t.Breakdown = PlaceholderBreakdown
	}
	insights := core.NonBlank(t.Insights)
	if len(insights) != len(t.Insights) {
		ns.add(path+".insights", NoteDropped, "%d blank", len(t.Insights)-len(insights))
	}
	if len(insights) == 0 {
		ns.add(path+".insights", NoteDefaulted, "")
		insights = []string{PlaceholderInsight}
	}
	t.Insights = insights
	t.Emoji = strings.TrimSpace(t.Emoji)
}

func decodeEmotions(raw any, ns *notes) []core.Emotion {
	var emotions []core.Emotion
	items, ok := raw.([]any)
	if !ok {
		if raw != nil {
			ns.add("emotions", NoteDropped, "expected a list, got %T", raw)
		}
		return emotions
	}

	for i, item := range items {
		path := fmt.Sprintf("emotions[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			ns.add(path, NoteDropped, "expected an object, got %T", item)
			continue
		}

		e := core.Emotion{
			Name:  stringField(obj["name"]),
			Color: stringField(obj["color"]),
		}
		if pct, ok := toNumber(obj["percentage"]); ok {
			e.Percentage = int(math.Round(pct))
			if _, isFloat := obj["percentage"].(float64); !isFloat {
				ns.add(path+".percentage", NoteCoerced, "from %T", obj["percentage"])
			}
		} else {
			ns.add(path+".percentage", NoteDefaulted, "not a number: %v", obj["percentage"])
		}
		emotions = append(emotions, e)
	}
	return emotions
}

func fixEmotion(path string, e *core.Emotion, ns *notes) {
	if e.Name = strings.TrimSpace(e.Name); e.Name == "" {
		ns.add(path+".name", NoteDefaulted, "")
		e.Name = PlaceholderEmotionName
	}
	if e.Percentage < 0 {
		ns.add(path+".percentage", NoteClamped, "%d -> 0", e.Percentage)
		e.Percentage = 0
	}
	if hex, ok := normalizeHex(e.Color); ok {
		if hex != e.Color {
			ns.add(path+".color", NoteCoerced, "%q -> %q", e.Color, hex)
		}
		e.Color = hex
		return
	}
	derived := ColorFor(e.Name)
	if e.Color == "" {
		ns.add(path+".color", NoteDerived, "%s", derived)
	} else {
		ns.add(path+".color", NoteDerived, "invalid %q -> %s", e.Color, derived)
	}
	e.Color = derived
}

// balancePercentages makes the (already non-negative) percentages sum to 100.
// All-zero input is spread evenly; any other sum is rescaled proportionally.
// In both cases the last entry absorbs the rounding remainder.
func balancePercentages(emotions []core.Emotion, ns *notes) {
	if len(emotions) == 0 {
		return
	}

	sum := 0
	for _, e := range emotions {
		sum += e.Percentage
	}
	if sum == 100 {
		return
	}

	last := len(emotions) - 1
	if sum == 0 {
		share := 100 / len(emotions)
		for i := range emotions {
			emotions[i].Percentage = share
		}
		emotions[last].Percentage = 100 - share*last
		ns.add("emotions", NoteRedistributed, "sum was 0")
		return
	}

	assigned := 0
	for i := 0; i < last; i++ {
		scaled := int(math.Round(float64(emotions[i].Percentage) * 100 / float64(sum)))
		emotions[i].Percentage = scaled
		assigned += scaled
	}
	emotions[last].Percentage = 100 - assigned
	ns.add("emotions", NoteRescaled, "sum was %d", sum)

	// Rounding up several small shares can overshoot; take the excess back
	// from the largest entries so no percentage goes negative.
	for emotions[last].Percentage < 0 {
		largest := 0
		for i := 1; i < last; i++ {
			if emotions[i].Percentage > emotions[largest].Percentage {
				largest = i
			}
		}
		emotions[largest].Percentage--
		emotions[last].Percentage++
	}
}

func decodePerspective(raw any, ns *notes) string {
	switch raw.(type) {
	case nil, string:
	default:
		ns.add("perspective", NoteCoerced, "from %T", raw)
	}
	return stringField(raw)
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64, bool:
		return cast.ToString(s)
	default:
		return ""
	}
}

func stringList(v any, path string, ns *notes) []string {
	switch list := v.(type) {
	case nil:
		return nil
	case string:
		ns.add(path, NoteCoerced, "single string")
		return []string{list}
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				ns.add(fmt.Sprintf("%s[%d]", path, i), NoteDropped, "expected a string, got %T", item)
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		ns.add(path, NoteDropped, "expected a list, got %T", v)
		return nil
	}
}

// maxMagnitude bounds parsed numbers before integer conversion.
const maxMagnitude = 1e6

// toNumber accepts JSON numbers and numeric strings such as "3" or "45%".
func toNumber(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok {
		return 0, false
	}
	return math.Max(-maxMagnitude, math.Min(maxMagnitude, f)), true
}

func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		x = strings.TrimSuffix(strings.TrimSpace(x), "%")
		if x == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(x))
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		f, err := cast.ToFloat64E(x)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

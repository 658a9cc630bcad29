// Package fallback supplies fixed, safe content used whenever a model call
// cannot produce a usable result.
package fallback

import (
	"time"

	"innersight/internal/core"
)

// TitleLayout formats the date-derived fallback title.
const TitleLayout = "January 2, 2006"

const (
	Reflection = "Thank you for taking the time to write today. Putting your thoughts into words is " +
		"already a meaningful step. Notice what stood out to you most, and be gentle with yourself as you reflect on it."
	Perspective = "It can help to look at today as one chapter rather than the whole story. " +
		"What you felt makes sense given what you were carrying. Consider what a kind friend might say to you " +
		"about this day, and pick one small thing you can do tomorrow to support yourself."
)

var analysis = core.AnalysisResult{
	Themes: []core.Theme{
		{
			Name:      "Self-reflection",
			Count:     1,
			Breakdown: "Writing this entry shows you are making space to understand your experiences.",
			Insights: []string{
				"Regular journaling helps you notice patterns over time",
				"Naming what you feel is the first step to working with it",
			},
			Emoji: "🪞",
		},
	},
	Emotions: []core.Emotion{
		{Name: "Reflective", Percentage: 60, Color: "#8B5CF6"},
		{Name: "Hopeful", Percentage: 40, Color: "#10B981"},
	},
	Perspective: "Every entry you write is a step toward understanding yourself a little better. " +
		"Your detailed analysis will be available the next time you write.",
}

// Provider hands out fallback content. Now is injectable for tests.
type Provider struct {
	Now func() time.Time
}

// New returns a Provider using the wall clock.
func New() *Provider {
	return &Provider{Now: time.Now}
}

// Analysis returns a copy of the fixed fallback AnalysisResult.
func (p *Provider) Analysis() core.AnalysisResult {
	return analysis.Clone()
}

// Reflection returns the fixed free-form reflection.
func (p *Provider) Reflection() string {
	return Reflection
}

// Perspective returns the fixed alternative perspective.
func (p *Provider) Perspective() string {
	return Perspective
}

// Title returns a title derived from the current date.
func (p *Provider) Title() string {
	return TitleFor(p.now())
}

// Text returns the fallback for a narrative task kind.
func (p *Provider) Text(kind core.TaskKind) string {
	switch kind {
	case core.TaskTitle:
		return p.Title()
	case core.TaskPerspective:
		return p.Perspective()
	default:
		return p.Reflection()
	}
}

// TitleFor formats the fallback title for t.
func TitleFor(t time.Time) string {
	return "Journal Entry - " + t.Format(TitleLayout)
}

func (p *Provider) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

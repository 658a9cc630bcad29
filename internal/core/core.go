package core

import (
	"strings"
	"time"
)

// TaskKind identifies which kind of model request is being made.
type TaskKind string

const (
	TaskReflection  TaskKind = "free-form-reflection"
	TaskTitle       TaskKind = "title-generation"
	TaskPerspective TaskKind = "alternative-perspective"
	TaskAnalysis    TaskKind = "structured-analysis"
)

// AllTaskKinds lists every supported task kind in a stable order.
var AllTaskKinds = []TaskKind{TaskReflection, TaskTitle, TaskPerspective, TaskAnalysis}

// IsStructured reports whether the task expects a JSON object reply.
func (k TaskKind) IsStructured() bool {
	return k == TaskAnalysis
}

// Valid reports whether k is one of the known task kinds.
func (k TaskKind) Valid() bool {
	for _, known := range AllTaskKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Entry is a single journal entry owned by a user.
type Entry struct {
	ID        string          `json:"id"`                 // Unique identifier for the entry
	UserID    string          `json:"user_id"`            // Owner of the entry
	Title     string          `json:"title"`              // Display title (generated or user supplied)
	Content   string          `json:"content"`            // Raw entry text
	Analysis  *AnalysisResult `json:"analysis,omitempty"` // Last structured analysis, if any
	Insight   string          `json:"insight,omitempty"`  // Last narrative reflection, if any
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Reflections holds the free-text answers collected during onboarding.
type Reflections struct {
	CurrentState    string `json:"current_state,omitempty"`
	IdealSelf       string `json:"ideal_self,omitempty"`
	BiggestObstacle string `json:"biggest_obstacle,omitempty"`
}

// IsZero reports whether no reflection was answered.
func (r Reflections) IsZero() bool {
	return strings.TrimSpace(r.CurrentState) == "" &&
		strings.TrimSpace(r.IdealSelf) == "" &&
		strings.TrimSpace(r.BiggestObstacle) == ""
}

// PersonalizationContext is read-only onboarding data used to enrich prompts.
type PersonalizationContext struct {
	Goals       []string    `json:"goals,omitempty"`
	Challenges  []string    `json:"challenges,omitempty"`
	Reflections Reflections `json:"reflections"`
}

// IsEmpty reports whether the context carries nothing worth adding to a prompt.
func (p *PersonalizationContext) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(NonBlank(p.Goals)) == 0 && len(NonBlank(p.Challenges)) == 0 && p.Reflections.IsZero()
}

// Profile is the stored per-user onboarding record.
type Profile struct {
	UserID          string                 `json:"user_id"`
	DisplayName     string                 `json:"display_name,omitempty"`
	Personalization PersonalizationContext `json:"personalization"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Theme is one recurring topic found in an entry.
type Theme struct {
	Name      string   `json:"name"`
	Count     int      `json:"count"` // 1..5
	Breakdown string   `json:"breakdown"`
	Insights  []string `json:"insights"`
	Emoji     string   `json:"emoji"`
}

// Emotion is one detected emotion and its share of the entry.
type Emotion struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"` // 0..100, all emotions sum to 100
	Color      string `json:"color"`      // #RRGGBB
}

// AnalysisResult is the validated output of the structured-analysis task.
type AnalysisResult struct {
	Themes      []Theme   `json:"themes"`
	Emotions    []Emotion `json:"emotions"`
	Perspective string    `json:"perspective"`
}

// Clone returns a deep copy so cached or fallback values are never shared.
func (a AnalysisResult) Clone() AnalysisResult {
	out := AnalysisResult{Perspective: a.Perspective}
	if a.Themes != nil {
		out.Themes = make([]Theme, len(a.Themes))
		for i, t := range a.Themes {
			t.Insights = append([]string(nil), t.Insights...)
			out.Themes[i] = t
		}
	}
	if a.Emotions != nil {
		out.Emotions = append([]Emotion(nil), a.Emotions...)
	}
	return out
}

// NonBlank returns the trimmed, non-empty values of in, preserving order.
func NonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

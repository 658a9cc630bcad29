// Package extract locates the answer text inside a provider response whose
// shape is not known in advance.
package extract

import (
	"fmt"
	"strings"

	"innersight/internal/llm"
)

// Reason describes why extraction failed.
type Reason string

const ReasonNoShape Reason = "no-recognizable-shape"

// Failure is returned when no matcher recognised the response.
type Failure struct {
	Reason Reason
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed: %s", f.Reason)
}

// Outcome is either Text (with the Shape that produced it) or a Failure.
type Outcome struct {
	Text    string
	Shape   string
	Failure *Failure
}

// OK reports whether text was found.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Err returns the failure as an error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Matcher probes one response shape.
type Matcher struct {
	Name string
	// ReasoningOnly matchers run only for reasoning-style providers.
	ReasoningOnly bool
	Match         func(body map[string]any) (string, bool)
}

// PathMatcher builds a matcher that reads a non-empty string at path.
// Path elements are object keys (string) or array indexes (int).
func PathMatcher(name string, path ...any) Matcher {
	return Matcher{
		Name: name,
		Match: func(body map[string]any) (string, bool) {
			return nonEmptyString(lookup(body, path...))
		},
	}
}

// DefaultMatchers is the fixed priority order used to find answer text.
var DefaultMatchers = []Matcher{
	PathMatcher("choices[0].message.content", "choices", 0, "message", "content"),
	reasoningMatcher(),
	PathMatcher("choices[0].text", "choices", 0, "text"),
	PathMatcher("choices[0].content", "choices", 0, "content"),
	PathMatcher("content", "content"),
	PathMatcher("message.content", "message", "content"),
	PathMatcher("text", "text"),
	PathMatcher("response", "response"),
	PathMatcher("output", "output"),
	PathMatcher("result.content", "result", "content"),
}

// reasoningMatcher returns reasoning_content as-is, even when it holds JSON.
func reasoningMatcher() Matcher {
	m := PathMatcher("choices[0].message.reasoning_content", "choices", 0, "message", "reasoning_content")
	m.ReasoningOnly = true
	return m
}

// envelopeKey wraps the real body in some client libraries and proxies.
const envelopeKey = "data"

// Extractor tries its matchers in order and returns the first hit.
type Extractor struct {
	matchers []Matcher
}

// New returns an extractor over matchers, or DefaultMatchers when none are given.
func New(matchers ...Matcher) *Extractor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers
	}
	return &Extractor{matchers: matchers}
}

// Extract finds the answer text in raw. It never panics.
func (e *Extractor) Extract(raw *llm.RawResponse, reasoning bool) Outcome {
	if raw == nil {
		return failure()
	}
	body, ok := raw.Body.(map[string]any)
	if !ok {
		return failure()
	}

	if out, ok := e.match(body, reasoning); ok {
		return out
	}
	if inner, ok := body[envelopeKey].(map[string]any); ok {
		if out, ok := e.match(inner, reasoning); ok {
			out.Shape = envelopeKey + "." + out.Shape
			return out
		}
	}
	return failure()
}

func (e *Extractor) match(body map[string]any, reasoning bool) (Outcome, bool) {
	for _, m := range e.matchers {
		if m.ReasoningOnly && !reasoning {
			continue
		}
		if text, ok := safeMatch(m, body); ok {
			return Outcome{Text: text, Shape: m.Name}, true
		}
	}
	return Outcome{}, false
}

// safeMatch isolates custom matchers that might panic.
func safeMatch(m Matcher, body map[string]any) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()
	return m.Match(body)
}

func failure() Outcome {
	return Outcome{Failure: &Failure{Reason: ReasonNoShape}}
}

func lookup(v any, path ...any) any {
	cur := v
	for _, p := range path {
		switch key := p.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = obj[key]
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil
			}
			cur = arr[key]
		default:
			return nil
		}
	}
	return cur
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

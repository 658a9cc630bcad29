// Package decode pulls a JSON object out of model text that may be wrapped
// in prose or markdown fences, or cut short by a token limit.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Reason describes why decoding failed.
type Reason string

const (
	ReasonMalformed  Reason = "malformed-json"
	ReasonIncomplete Reason = "incomplete-json"
)

// DefaultMarker is the top-level field whose absence signals truncation.
// It is the last field of the analysis schema, so a cut-off reply loses it first.
const DefaultMarker = "perspective"

const fence = "```"

// Failure is returned for any text that does not yield a complete object.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("decode failed: %s", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Decoded is a successfully parsed object.
type Decoded struct {
	Object   map[string]any
	Repaired bool // strict parsing failed and the repaired text was used
}

// Decoder extracts and parses the JSON object embedded in model text.
type Decoder struct {
	marker string
	repair bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMarker overrides the completeness marker field.
func WithMarker(field string) Option {
	return func(d *Decoder) { d.marker = field }
}

// WithRepair toggles the JSON repair attempt made when strict parsing fails.
func WithRepair(enabled bool) Option {
	return func(d *Decoder) { d.repair = enabled }
}

// New returns a decoder that checks for DefaultMarker and attempts repair.
func New(opts ...Option) *Decoder {
	d := &Decoder{marker: DefaultMarker, repair: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode returns the object embedded in text, or a *Failure.
func (d *Decoder) Decode(text string) (Decoded, error) {
	candidate, ok := Candidate(text)
	if !ok {
		return Decoded{}, &Failure{Reason: ReasonMalformed, Err: errors.New("no JSON object found")}
	}

	obj, err := parseObject(candidate)
	repaired := false
	if err != nil && d.repair {
		if fixed, repairErr := jsonrepair.JSONRepair(candidate); repairErr == nil {
			if obj, err = parseObject(fixed); err == nil {
				repaired = true
			}
		}
	}
	if err != nil {
		return Decoded{}, &Failure{Reason: ReasonMalformed, Err: err}
	}

	if d.marker != "" {
		if _, present := obj[d.marker]; !present {
			return Decoded{}, &Failure{
				Reason: ReasonIncomplete,
				Err:    fmt.Errorf("missing %q field", d.marker),
			}
		}
	}

	return Decoded{Object: obj, Repaired: repaired}, nil
}

// Candidate trims text, narrows it to the first fenced block when there is one,
// and returns the greedy span from the first '{' to the last '}'. A span with
// no closing brace runs to the end of the text.
func Candidate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if inner, ok := firstFencedBlock(text); ok {
		text = inner
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return strings.TrimSpace(text[start:]), true
	}
	return text[start : end+1], true
}

// firstFencedBlock returns the body of the first ``` block. The opening fence
// may follow prose on the same line; an unclosed block runs to the end.
func firstFencedBlock(text string) (string, bool) {
	open := strings.Index(text, fence)
	if open < 0 {
		return "", false
	}
	rest := text[open+len(fence):]

	// Drop the language tag line ("json", "JSON", ...).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}

	if closeIdx := strings.Index(rest, fence); closeIdx >= 0 {
		rest = rest[:closeIdx]
	}
	return strings.TrimSpace(rest), true
}

func parseObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}

// AsFailure unwraps err into a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"innersight/internal/core"
)

func TestBuildIncludesEntry(t *testing.T) {
	for _, kind := range core.AllTaskKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := Build(kind, "  Today I walked by the river.  ", nil)
			assert.Contains(t, p, "JOURNAL ENTRY:\nToday I walked by the river.\n")
			assert.NotContains(t, p, "ABOUT THE AUTHOR")
		})
	}
}

func TestBuildAnalysisHasSchemaAndDirective(t *testing.T) {
	p := Build(core.TaskAnalysis, "entry", nil)

	assert.Contains(t, p, AnalysisSchemaExample)
	assert.Contains(t, p, "Respond with ONLY the JSON object")
	assert.Contains(t, p, `"perspective"`)
}

func TestBuildNarrativeHasNoSchema(t *testing.T) {
	for _, kind := range []core.TaskKind{core.TaskReflection, core.TaskTitle, core.TaskPerspective} {
		assert.NotContains(t, Build(kind, "entry", nil), AnalysisSchemaExample, kind)
	}
}

func TestBuildPersonalization(t *testing.T) {
	pctx := &core.PersonalizationContext{
		Goals:      []string{"sleep better", " "},
		Challenges: []string{"procrastination"},
		Reflections: core.Reflections{
			IdealSelf:       "patient",
			BiggestObstacle: "  ",
		},
	}

	p := Build(core.TaskReflection, "entry", pctx)
	assert.Contains(t, p, "Goals: sleep better\n")
	assert.Contains(t, p, "Challenges: procrastination\n")
	assert.Contains(t, p, "Who they want to become: patient\n")
	assert.NotContains(t, p, "Their biggest obstacle")
	assert.NotContains(t, p, "How they describe")

	// Titles never use personalization
	assert.NotContains(t, Build(core.TaskTitle, "entry", pctx), "ABOUT THE AUTHOR")
}

func TestBuildEmptyPersonalizationSkipped(t *testing.T) {
	p := Build(core.TaskPerspective, "entry", &core.PersonalizationContext{Goals: []string{""}})
	assert.NotContains(t, p, "ABOUT THE AUTHOR")
}

func TestBuildIsDeterministic(t *testing.T) {
	pctx := &core.PersonalizationContext{Goals: []string{"a", "b"}}
	assert.Equal(t, Build(core.TaskAnalysis, "x", pctx), Build(core.TaskAnalysis, "x", pctx))
}

func TestBuildTruncatesLongEntries(t *testing.T) {
	long := strings.Repeat("é", MaxEntryChars+50)
	p := Build(core.TaskTitle, long, nil)
	assert.Contains(t, p, strings.Repeat("é", MaxEntryChars)+"...")
	assert.NotContains(t, p, strings.Repeat("é", MaxEntryChars+1))
}

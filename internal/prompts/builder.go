// Package prompts composes the instruction text sent to the model for each task kind.
package prompts

import (
	"fmt"
	"strings"

	"innersight/internal/core"
)

// MaxEntryChars caps how much of an entry is embedded in a prompt.
const MaxEntryChars = 8000

// AnalysisSchemaExample is embedded verbatim in the structured-analysis prompt.
const AnalysisSchemaExample = `{
  "themes": [
    {
      "name": "Work stress",
      "count": 3,
      "breakdown": "Deadlines came up several times and set the tone of the day.",
      "insights": ["You mention feeling behind before noon", "Rest is framed as something to earn"],
      "emoji": "💼"
    }
  ],
  "emotions": [
    {"name": "Anxious", "percentage": 60, "color": "#F59E0B"},
    {"name": "Hopeful", "percentage": 40, "color": "#10B981"}
  ],
  "perspective": "A short, kind reframing of the entry written in the second person."
}`

// Build returns the prompt for kind over the given entry text.
// pctx may be nil. The entry is expected to be non-empty after trimming.
func Build(kind core.TaskKind, entry string, pctx *core.PersonalizationContext) string {
	entry = truncate(strings.TrimSpace(entry), MaxEntryChars)

	var sb strings.Builder
	switch kind {
	case core.TaskTitle:
		buildTitle(&sb, entry)
	case core.TaskPerspective:
		buildPerspective(&sb, entry, pctx)
	case core.TaskAnalysis:
		buildAnalysis(&sb, entry, pctx)
	default:
		buildReflection(&sb, entry, pctx)
	}
	return sb.String()
}

func buildReflection(sb *strings.Builder, entry string, pctx *core.PersonalizationContext) {
	sb.WriteString("You are a warm, thoughtful journaling companion.\n")
	sb.WriteString("Read the journal entry below and write a short reflection for its author.\n\n")
	writePersonalization(sb, pctx)
	writeEntry(sb, entry)
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- Write 2 to 4 sentences in the second person\n")
	sb.WriteString("- Name one pattern you notice and one gentle question to sit with\n")
	sb.WriteString("- Do not diagnose or give medical advice\n")
	sb.WriteString("- Reply with plain text only, no headings, lists, or markdown\n")
}

func buildTitle(sb *strings.Builder, entry string) {
	sb.WriteString("Write a title for the journal entry below.\n\n")
	writeEntry(sb, entry)
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- At most 6 words\n")
	sb.WriteString("- No quotes, no trailing punctuation, no emoji\n")
	sb.WriteString("- Reply with the title only\n")
}

func buildPerspective(sb *strings.Builder, entry string, pctx *core.PersonalizationContext) {
	sb.WriteString("You help people see their situation from a different angle.\n")
	sb.WriteString("Offer an alternative perspective on the journal entry below.\n\n")
	writePersonalization(sb, pctx)
	writeEntry(sb, entry)
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- Write one paragraph of 3 to 5 sentences in the second person\n")
	sb.WriteString("- Acknowledge the feeling before reframing it\n")
	sb.WriteString("- Suggest one small, concrete next step\n")
	sb.WriteString("- Reply with plain text only\n")
}

func buildAnalysis(sb *strings.Builder, entry string, pctx *core.PersonalizationContext) {
	sb.WriteString("You analyse journal entries and return structured data.\n")
	sb.WriteString("Identify the recurring themes and the emotional mix of the entry below.\n\n")
	writePersonalization(sb, pctx)
	writeEntry(sb, entry)

	sb.WriteString("RULES:\n")
	sb.WriteString("- 1 to 5 themes; \"count\" is an integer from 1 to 5 for how strongly the theme recurs\n")
	sb.WriteString("- every theme has a non-empty \"breakdown\" and at least one insight\n")
	sb.WriteString("- \"emoji\" is a single emoji or an empty string\n")
	sb.WriteString("- 2 to 5 emotions; \"percentage\" values are integers that sum to exactly 100\n")
	sb.WriteString("- \"color\" is a hex color such as #A1B2C3\n")
	sb.WriteString("- \"perspective\" is 2 to 3 supportive sentences\n\n")

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("Respond with ONLY the JSON object below, filled in for this entry.\n")
	sb.WriteString("Do not add any text before or after it and do not wrap it in markdown.\n\n")
	sb.WriteString(AnalysisSchemaExample)
	sb.WriteString("\n")
}

func writeEntry(sb *strings.Builder, entry string) {
	sb.WriteString("JOURNAL ENTRY:\n")
	sb.WriteString(entry)
	sb.WriteString("\n\n")
}

func writePersonalization(sb *strings.Builder, pctx *core.PersonalizationContext) {
	if pctx.IsEmpty() {
		return
	}

	sb.WriteString("ABOUT THE AUTHOR:\n")
	if goals := core.NonBlank(pctx.Goals); len(goals) > 0 {
		sb.WriteString(fmt.Sprintf("Goals: %s\n", strings.Join(goals, ", ")))
	}
	if challenges := core.NonBlank(pctx.Challenges); len(challenges) > 0 {
		sb.WriteString(fmt.Sprintf("Challenges: %s\n", strings.Join(challenges, ", ")))
	}
	r := pctx.Reflections
	if s := strings.TrimSpace(r.CurrentState); s != "" {
		sb.WriteString(fmt.Sprintf("How they describe their life right now: %s\n", s))
	}
	if s := strings.TrimSpace(r.IdealSelf); s != "" {
		sb.WriteString(fmt.Sprintf("Who they want to become: %s\n", s))
	}
	if s := strings.TrimSpace(r.BiggestObstacle); s != "" {
		sb.WriteString(fmt.Sprintf("Their biggest obstacle: %s\n", s))
	}
	sb.WriteString("Use this only to make the response more relevant. Do not repeat it back.\n\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

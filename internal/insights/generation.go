package insights

import (
	"innersight/internal/config"
	"innersight/internal/core"
	"innersight/internal/llm"
)

// Generation holds transport options per task family. Structured analysis
// runs cooler and with more output room to keep the JSON intact.
type Generation struct {
	Analysis  llm.Options
	Narrative llm.Options
	Title     llm.Options
}

// For returns the options used for kind.
func (g Generation) For(kind core.TaskKind) llm.Options {
	switch kind {
	case core.TaskAnalysis:
		return g.Analysis
	case core.TaskTitle:
		return g.Title
	default:
		return g.Narrative
	}
}

// DefaultGeneration mirrors the configuration defaults.
func DefaultGeneration() Generation {
	return GenerationFromConfig(config.AI{
		Analysis:  config.Generation{Temperature: 0.3, MaxTokens: 2000, Timeout: "60s"},
		Narrative: config.Generation{Temperature: 0.7, MaxTokens: 500, Timeout: "30s"},
		Title:     config.Generation{Temperature: 0.5, MaxTokens: 30, Timeout: "15s"},
	})
}

// GenerationFromConfig converts the ai section into transport options.
func GenerationFromConfig(cfg config.AI) Generation {
	return Generation{
		Analysis:  toOptions(cfg.Analysis),
		Narrative: toOptions(cfg.Narrative),
		Title:     toOptions(cfg.Title),
	}
}

func toOptions(g config.Generation) llm.Options {
	return llm.Options{
		Timeout:     g.TimeoutDuration(),
		Temperature: llm.Float(g.Temperature),
		MaxTokens:   g.MaxTokens,
	}
}

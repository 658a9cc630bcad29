package handlers

import (
	"fmt"
	"net/http"

	"innersight/internal/config"
	"innersight/internal/insights"
	"innersight/internal/llm"
	"innersight/internal/logger"
	"innersight/internal/observability"
	"innersight/internal/provider"
)

// insightStack is the insight service together with the collaborators that
// need closing when the command exits.
type insightStack struct {
	service *insights.Service
	posthog *observability.PostHogClient
}

// newInsightStack builds the service from cfg. Extra options are applied
// after the configured ones.
func newInsightStack(cfg *config.Config, extra ...insights.Option) (*insightStack, error) {
	log := logger.Get()

	registry, err := provider.FromConfig(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	if !cfg.HasCredential(cfg.AI.Active) {
		log.Warn("Active provider has no API key, every call will use fallback content", "provider", cfg.AI.Active)
	}

	posthog, err := observability.NewPostHogClient(cfg.PostHog, log)
	if err != nil {
		return nil, err
	}

	opts := []insights.Option{
		insights.WithLogger(log),
		insights.WithGeneration(insights.GenerationFromConfig(cfg.AI)),
		insights.WithTracker(posthog),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, insights.WithMetrics(observability.DefaultMetrics()))
	}
	if cfg.Cache.Enabled {
		opts = append(opts, insights.WithCache(cfg.Cache.Size, cfg.Cache.TTLDuration()))
	}
	opts = append(opts, extra...)

	transport := llm.NewHTTPTransport(&http.Client{}, log)
	return &insightStack{
		service: insights.NewService(registry, transport, opts...),
		posthog: posthog,
	}, nil
}

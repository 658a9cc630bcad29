package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"

	"innersight/internal/config"
)

// PostHogClient wraps the PostHog SDK for product analytics
type PostHogClient struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// NewPostHogClient creates a new PostHog analytics client. A disabled config
// yields a client whose methods are no-ops.
func NewPostHogClient(cfg config.PostHog, log *slog.Logger) (*PostHogClient, error) {
	if log == nil {
		log = slog.Default()
	}

	if !cfg.Enabled {
		return &PostHogClient{enabled: false, log: log}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &PostHogClient{client: client, enabled: true, log: log}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p != nil && p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(ctx context.Context, distinctID string, event string, properties EventProperties) error {
	if !p.IsEnabled() {
		return nil
	}
	if distinctID == "" {
		distinctID = "anonymous"
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	return p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	})
}

// TrackFallback records that fallback content was served instead of model output
func (p *PostHogClient) TrackFallback(ctx context.Context, userID, task, provider, stage, reason string) error {
	return p.Capture(ctx, userID, "insight_fallback_served", EventProperties{
		"task":     task,
		"provider": provider,
		"stage":    stage,  // "transport", "extract", "decode"
		"reason":   reason, // e.g. "timeout", "no-recognizable-shape", "incomplete-json"
	})
}

// TrackInsight records a successful model-backed insight
func (p *PostHogClient) TrackInsight(ctx context.Context, userID, task, provider string, coercions int, latencyMs int64) error {
	return p.Capture(ctx, userID, "insight_generated", EventProperties{
		"task":       task,
		"provider":   provider,
		"coercions":  coercions,
		"latency_ms": latencyMs,
	})
}

// Shutdown flushes pending events and closes the client
func (p *PostHogClient) Shutdown(ctx context.Context) error {
	if !p.IsEnabled() {
		return nil
	}

	return p.client.Close()
}

// Package llm sends prompts to OpenAI-compatible chat-completions endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"innersight/internal/provider"
)

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 4 << 20

// Options are per-call generation parameters.
type Options struct {
	Timeout     time.Duration // zero means no per-call timeout beyond ctx
	Temperature *float64      // omitted from the request when nil
	MaxTokens   int           // omitted from the request when zero
}

// Float returns a pointer to v, for Options.Temperature.
func Float(v float64) *float64 {
	return &v
}

// RawResponse is an untrusted success payload. Body is the decoded JSON
// value, or nil when the payload was not JSON.
type RawResponse struct {
	StatusCode int
	Body       any
	Raw        []byte
}

// Transport issues one request to a provider. Any returned error is a *TransportError.
type Transport interface {
	Send(ctx context.Context, cfg provider.Config, prompt string, opts Options) (*RawResponse, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Stream      bool          `json:"stream"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// HTTPTransport implements Transport over net/http. It never retries.
type HTTPTransport struct {
	client *http.Client
	log    *slog.Logger
}

// NewHTTPTransport creates a transport. A nil client uses a client with a 120s ceiling.
func NewHTTPTransport(client *http.Client, log *slog.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPTransport{client: client, log: log}
}

// Send posts prompt as a single user message to cfg's endpoint.
func (t *HTTPTransport) Send(ctx context.Context, cfg provider.Config, prompt string, opts Options) (*RawResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	log := t.log.With("request_id", requestID, "provider", cfg.ID, "model", cfg.Model)

	payload, err := json.Marshal(chatRequest{
		Model:       cfg.Model,
		Stream:      false,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, &TransportError{Kind: KindNetwork, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Kind: KindNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if cfg.HasCredential() {
		req.Header.Set("Authorization", "Bearer "+cfg.Credential)
	}

	log.Debug("Sending model request",
		"endpoint", cfg.Endpoint,
		"authorization", maskAuthorization(req.Header.Get("Authorization")),
		"prompt_chars", len(prompt),
		"max_tokens", opts.MaxTokens,
	)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		te := classify(err)
		log.Debug("Model request failed", "kind", te.Kind, "error", err)
		return nil, te
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		te := classify(err)
		log.Debug("Reading model response failed", "kind", te.Kind, "error", err)
		return nil, te
	}

	log.Debug("Model response received",
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}

	raw := &RawResponse{StatusCode: resp.StatusCode, Raw: body}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		raw.Body = decoded
	} else {
		log.Debug("Model response is not JSON", "error", err)
	}
	return raw, nil
}

func maskAuthorization(v string) string {
	if v == "" {
		return ""
	}
	return "Bearer (hidden)"
}

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeModel    = "model"
	OutcomeFallback = "fallback"
	OutcomeCache    = "cache"
)

// Metrics exposes Prometheus collectors for the insight pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	coercions     *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns metrics registered with the global Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "innersight",
				Subsystem: "insights",
				Name:      "requests_total",
				Help:      "Insight requests by task, provider and outcome (model, fallback, cache).",
			},
			[]string{"task", "provider", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "innersight",
				Subsystem: "insights",
				Name:      "request_duration_seconds",
				Help:      "End-to-end latency of insight requests, fallbacks included.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"task", "provider"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "innersight",
				Subsystem: "insights",
				Name:      "stage_failures_total",
				Help:      "Pipeline stage failures that led to fallback content.",
			},
			[]string{"task", "stage", "reason"},
		),
		coercions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "innersight",
				Subsystem: "insights",
				Name:      "coercions_total",
				Help:      "Fields coerced or defaulted while normalizing model output.",
			},
			[]string{"code"},
		),
	}

	reg.MustRegister(m.requests, m.duration, m.stageFailures, m.coercions)
	return m
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(task, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(task, provider, outcome).Inc()
	m.duration.WithLabelValues(task, provider).Observe(elapsed.Seconds())
}

// RecordStageFailure counts a failure at stage (transport, extract, decode).
func (m *Metrics) RecordStageFailure(task, stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(task, stage, reason).Inc()
}

// RecordCoercion counts one normalization note by code.
func (m *Metrics) RecordCoercion(code string) {
	if m == nil {
		return
	}
	m.coercions.WithLabelValues(code).Inc()
}

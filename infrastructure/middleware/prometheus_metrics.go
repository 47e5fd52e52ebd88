// Package middleware provides cross-cutting observability for the
// recommendation service: a Prometheus MetricsCollector, an OpenTelemetry
// rank observer, and an EventReporter that counts and logs events.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/treadpick/infrastructure/llm"
	"github.com/ahrav/treadpick/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector with Prometheus
// vectors. Known metric names route to dedicated vectors; anything else
// lands in the generic operation vectors.
type PrometheusMetrics struct {
	rankDuration     *prometheus.HistogramVec
	explanations     *prometheus.CounterVec
	candidates       *prometheus.GaugeVec
	fetchFailures    *prometheus.CounterVec
	events           *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every vector with reg. A nil reg uses the
// default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusMetrics{
		rankDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricRankDuration,
				Help:    "End-to-end duration of recommendation requests, including explanation lookups.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"wet_pref", "width_pref"},
		),
		explanations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricExplanations,
				Help: "Explanation lookups by outcome.",
			},
			[]string{"outcome"},
		),
		candidates: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: ports.MetricCandidatesFetched,
				Help: "Candidates returned by the most recent fetch.",
			},
			[]string{"kind"},
		),
		fetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricFetchFailures,
				Help: "Candidate fetches that failed.",
			},
			[]string{"source"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricEvents,
				Help: "Reported user-visible events.",
			},
			[]string{"event"},
		),
		feedback: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricFeedback,
				Help: "Feedback submissions by outcome.",
			},
			[]string{"outcome"},
		),
		llmLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    llm.MetricLLMLatency,
				Help:    "Latency of LLM provider requests.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricLLMRequests,
				Help: "LLM provider requests by status.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricLLMTokens,
				Help: "Tokens consumed by LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		operationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "treadpick_operation_duration_seconds",
				Help:    "Duration of other instrumented operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treadpick_operations_total",
				Help: "Counts of other instrumented operations.",
			},
			[]string{"operation"},
		),
		systemGauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "treadpick_system_state",
				Help: "Other gauge values.",
			},
			[]string{"metric"},
		),
	}
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	switch operation {
	case ports.MetricRankDuration:
		pm.rankDuration.WithLabelValues(label(labels, "wet_pref"), label(labels, "width_pref")).Observe(d.Seconds())
	case llm.MetricLLMLatency:
		pm.RecordHistogram(llm.MetricLLMLatency, d.Seconds(), labels)
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricExplanations:
		pm.explanations.WithLabelValues(label(labels, "outcome")).Add(value)
	case ports.MetricFetchFailures:
		pm.fetchFailures.WithLabelValues(label(labels, "source")).Add(value)
	case ports.MetricEvents:
		pm.events.WithLabelValues(label(labels, "event")).Add(value)
	case ports.MetricFeedback:
		pm.feedback.WithLabelValues(label(labels, "outcome")).Add(value)
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "token_type")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricCandidatesFetched:
		pm.candidates.WithLabelValues(label(labels, "kind")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

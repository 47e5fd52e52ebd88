package ports

import (
	"context"
	"time"

	"github.com/ahrav/treadpick/internal/domain"
)

// CandidateSource provides the full tire dataset.
// Implementations return every row; filtering and scoring happen in the
// caller. The order of the returned slice is the fetch order used to break
// score ties, so implementations should return rows in a stable order.
type CandidateSource interface {
	// ListCandidates fetches all candidates. It is called once per
	// recommendation request; results must not be cached.
	ListCandidates(ctx context.Context) ([]domain.Candidate, error)
}

// ExplainRequest is the input to an Explainer lookup.
type ExplainRequest struct {
	// Tire is the ranked candidate being explained.
	Tire domain.ScoredCandidate `json:"tire"`

	// WetPref is the wet preference the ranking was computed for.
	WetPref domain.WetPreference `json:"wetPref"`
}

// Explainer produces a natural-language explanation for a ranked tire.
// Callers substitute a deterministic fallback when Explain returns an error,
// so implementations should fail fast rather than retry indefinitely.
type Explainer interface {
	Explain(ctx context.Context, req ExplainRequest) (string, error)
}

// FeedbackSink persists feedback records. A failed write is reported to the
// caller and never retried.
type FeedbackSink interface {
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}

// Notifier delivers a plain-text message to a chat-ops channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Event names emitted through an EventReporter.
const (
	EventRecommendationShown = "recommendation_shown"
	EventFeedbackSubmitted   = "feedback_submitted"
	EventFetchFailed         = "fetch_failed"
)

// EventReporter receives user-visible events such as a recommendation being
// shown. It stands in for page analytics and must never block or fail the
// request that emits the event.
type EventReporter interface {
	Report(ctx context.Context, event string, attrs map[string]string)
}

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names recorded through a MetricsCollector.
const (
	// MetricRankDuration is recorded with RecordLatency per request, labeled
	// wet_pref and width_pref.
	MetricRankDuration = "treadpick_rank_duration_seconds"

	// MetricExplanations counts explanation lookups by outcome
	// (provider or fallback).
	MetricExplanations = "treadpick_explanations_total"

	// MetricCandidatesFetched is a gauge of the last fetch, labeled kind
	// (total or eligible).
	MetricCandidatesFetched = "treadpick_candidates_fetched"

	// MetricFetchFailures counts failed candidate fetches.
	MetricFetchFailures = "treadpick_fetch_failures_total"

	// MetricEvents counts reported events, labeled event.
	MetricEvents = "treadpick_events_total"

	// MetricFeedback counts feedback submissions by outcome
	// (accepted, invalid, rejected).
	MetricFeedback = "treadpick_feedback_total"
)

// RankOutcome summarizes one recommendation request for observers.
type RankOutcome struct {
	Candidates int
	Eligible   int
	Fallbacks  int
	TopIDs     []string
}

// RankObserver brackets a recommendation request. PreRank returns the
// context the request should continue with; PostRank must be called with
// that context exactly once.
type RankObserver interface {
	PreRank(ctx context.Context, wet domain.WetPreference, width domain.WidthPreference) context.Context
	PostRank(ctx context.Context, outcome RankOutcome, elapsed time.Duration, err error)
}

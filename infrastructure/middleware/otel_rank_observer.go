package middleware

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
)

// SpanRecommendationRank is the span opened around each recommendation.
const SpanRecommendationRank = "recommendation.rank"

var _ ports.RankObserver = (*OTelRankObserver)(nil)

// OTelRankObserver traces recommendation requests and records their
// duration and fetch counts. The span travels in the context, so one
// observer serves concurrent requests.
type OTelRankObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelRankObserver creates an observer. metrics may be nil.
func NewOTelRankObserver(metrics ports.MetricsCollector) *OTelRankObserver {
	return &OTelRankObserver{
		metrics: metrics,
		tracer:  otel.Tracer("treadpick/recommendation"),
	}
}

type rankPrefsKey struct{}

type rankPrefs struct {
	wet   domain.WetPreference
	width domain.WidthPreference
}

// PreRank implements ports.RankObserver.
func (o *OTelRankObserver) PreRank(
	ctx context.Context,
	wet domain.WetPreference,
	width domain.WidthPreference,
) context.Context {
	ctx, _ = o.tracer.Start(ctx, SpanRecommendationRank, trace.WithAttributes(
		attribute.String("rank.wet_pref", string(wet)),
		attribute.String("rank.width_pref", string(width)),
	))
	return context.WithValue(ctx, rankPrefsKey{}, rankPrefs{wet: wet, width: width})
}

// PostRank implements ports.RankObserver.
func (o *OTelRankObserver) PostRank(
	ctx context.Context,
	outcome ports.RankOutcome,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	prefs, _ := ctx.Value(rankPrefsKey{}).(rankPrefs)
	if o.metrics != nil {
		o.metrics.RecordLatency(ports.MetricRankDuration, elapsed, map[string]string{
			"wet_pref":   string(prefs.wet),
			"width_pref": string(prefs.width),
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(
		attribute.Int("rank.candidates", outcome.Candidates),
		attribute.Int("rank.eligible", outcome.Eligible),
		attribute.Int("rank.results", len(outcome.TopIDs)),
		attribute.Int("rank.fallbacks", outcome.Fallbacks),
	)
	if len(outcome.TopIDs) > 0 {
		span.AddEvent("rank.results", trace.WithAttributes(
			attribute.String("top_ids", strings.Join(outcome.TopIDs, ",")),
		))
	}
	o.updateMetrics(outcome)
	span.SetStatus(codes.Ok, "")
}

func (o *OTelRankObserver) updateMetrics(outcome ports.RankOutcome) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordGauge(ports.MetricCandidatesFetched, float64(outcome.Candidates), map[string]string{"kind": "total"})
	o.metrics.RecordGauge(ports.MetricCandidatesFetched, float64(outcome.Eligible), map[string]string{"kind": "eligible"})
}

package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/treadpick/infrastructure/llm"
	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
	"github.com/ahrav/treadpick/internal/testutils"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func TestPrometheusMetrics_RoutesKnownMetrics(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(ports.MetricExplanations, 2, map[string]string{"outcome": "provider"})
	pm.RecordCounter(ports.MetricExplanations, 1, map[string]string{"outcome": "fallback"})
	pm.RecordCounter(ports.MetricEvents, 1, map[string]string{"event": ports.EventRecommendationShown})
	pm.RecordCounter(ports.MetricFeedback, 1, map[string]string{"outcome": "accepted"})
	pm.RecordCounter(ports.MetricFetchFailures, 1, map[string]string{"source": "postgres"})
	pm.RecordGauge(ports.MetricCandidatesFetched, 7, map[string]string{"kind": "total"})
	pm.RecordCounter(llm.MetricLLMRequests, 1, map[string]string{"provider": "openai", "model": "gpt-4o-mini", "status": "success"})
	pm.RecordCounter(llm.MetricLLMTokens, 42, map[string]string{"provider": "openai", "model": "gpt-4o-mini", "token_type": "input"})

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.explanations.WithLabelValues("provider")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.explanations.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.events.WithLabelValues(ports.EventRecommendationShown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.feedback.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.fetchFailures.WithLabelValues("postgres")))
	assert.Equal(t, 7.0, testutil.ToFloat64(pm.candidates.WithLabelValues("total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmRequests.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 42.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o-mini", "input")))
}

func TestPrometheusMetrics_MissingLabelsUseUnknown(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(ports.MetricExplanations, 1, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.explanations.WithLabelValues("unknown")))
}

func TestPrometheusMetrics_UnknownNamesFallThrough(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter("cache_misses", 3, nil)
	pm.RecordGauge("queue_depth", 5, nil)
	pm.RecordLatency("warmup", 20*time.Millisecond, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("cache_misses")))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.systemGauges.WithLabelValues("queue_depth")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.operationLatency))
}

func TestPrometheusMetrics_Histograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency(ports.MetricRankDuration, 150*time.Millisecond, map[string]string{"wet_pref": "very", "width_pref": "wide"})
	pm.RecordHistogram(llm.MetricLLMLatency, 0.8, map[string]string{"provider": "anthropic", "model": "claude", "status": "success"})

	count, err := testutil.GatherAndCount(reg, ports.MetricRankDuration, llm.MetricLLMLatency)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPrometheusMetrics_WorksAsLLMCollector(t *testing.T) {
	pm, _ := newTestMetrics(t)

	core := llm.NewMockCoreLLM()
	core.Model = "gpt-4o-mini"
	client := llm.NewClientFromCore(core, llm.MetricsMiddleware(pm))
	_, err := client.Complete(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmRequests.WithLabelValues("openai", "gpt-4o-mini", "success")))
}

func TestOTelRankObserver(t *testing.T) {
	metrics := &testutils.FakeMetrics{}
	obs := NewOTelRankObserver(metrics)

	ctx := obs.PreRank(context.Background(), domain.WetVery, domain.WidthWide)
	obs.PostRank(ctx, ports.RankOutcome{Candidates: 7, Eligible: 5, Fallbacks: 1, TopIDs: []string{"a", "b", "c"}}, 40*time.Millisecond, nil)

	lat := metrics.Samples(ports.MetricRankDuration)
	require.Len(t, lat, 1)
	assert.Equal(t, "very", lat[0].Labels["wet_pref"])
	assert.Equal(t, "wide", lat[0].Labels["width_pref"])
	assert.InDelta(t, 0.04, lat[0].Value, 1e-9)

	fetched := metrics.Samples(ports.MetricCandidatesFetched)
	require.Len(t, fetched, 2)
	assert.Equal(t, 7.0, fetched[0].Value)
	assert.Equal(t, 5.0, fetched[1].Value)
}

func TestOTelRankObserver_Error(t *testing.T) {
	metrics := &testutils.FakeMetrics{}
	obs := NewOTelRankObserver(metrics)

	ctx := obs.PreRank(context.Background(), domain.WetNot, domain.WidthNarrow)
	obs.PostRank(ctx, ports.RankOutcome{}, time.Millisecond, errors.New("fetch failed"))

	assert.Len(t, metrics.Samples(ports.MetricRankDuration), 1)
	assert.Empty(t, metrics.Samples(ports.MetricCandidatesFetched))
}

func TestOTelRankObserver_NilMetrics(t *testing.T) {
	obs := NewOTelRankObserver(nil)
	ctx := obs.PreRank(context.Background(), domain.WetNormal, domain.WidthNarrow)
	assert.NotPanics(t, func() {
		obs.PostRank(ctx, ports.RankOutcome{Candidates: 1}, time.Millisecond, nil)
	})
}

func TestEventReporter(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	metrics := &testutils.FakeMetrics{}
	r := NewEventReporter(metrics)

	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	r.Report(ctx, ports.EventRecommendationShown, map[string]string{"top1": "a", "top2": "b"})

	samples := metrics.Samples(ports.MetricEvents)
	require.Len(t, samples, 1)
	assert.Equal(t, ports.EventRecommendationShown, samples[0].Labels["event"])

	out := buf.String()
	assert.True(t, strings.Contains(out, `"event":"recommendation_shown"`), out)
	assert.Contains(t, out, `"top1":"a"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
}

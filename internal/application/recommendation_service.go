// Package application wires the pure ranking domain to its collaborators:
// it fetches candidates, ranks them, looks up explanations concurrently with
// a deterministic fallback, records feedback, and reports events.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// ErrFetchFailed is returned by Recommend when the candidate source fails.
// The accompanying Recommendation has an empty result list.
var ErrFetchFailed = errors.New("candidate fetch failed")

// DefaultMaxConcurrency bounds concurrent explanation lookups per request.
const DefaultMaxConcurrency = domain.TopN

// Request is the pair of answers a user gives.
type Request struct {
	Wet   domain.WetPreference
	Width domain.WidthPreference
}

// Meta describes how a recommendation was produced.
type Meta struct {
	RequestID  string                 `json:"request_id"`
	WetPref    domain.WetPreference   `json:"wet_pref"`
	WidthPref  domain.WidthPreference `json:"width_pref"`
	Candidates int                    `json:"candidates"`
	Eligible   int                    `json:"eligible"`
	Fallbacks  int                    `json:"fallbacks"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
}

// Recommendation is the complete results view for one request.
type Recommendation struct {
	Results []domain.ScoredCandidate `json:"results"`
	Meta    Meta                     `json:"meta"`
}

// RecommendationService produces recommendations. It holds no per-request
// state and is safe for concurrent use.
type RecommendationService struct {
	source         ports.CandidateSource
	explainer      ports.Explainer
	reporter       ports.EventReporter
	metrics        ports.MetricsCollector
	observer       ports.RankObserver
	maxConcurrency int
	explainTimeout time.Duration
	now            func() time.Time
}

// RecommendationOption configures a RecommendationService.
type RecommendationOption func(*RecommendationService)

// WithExplainer sets the explanation provider. Without one every result
// uses the fallback explanation.
func WithExplainer(e ports.Explainer) RecommendationOption {
	return func(s *RecommendationService) { s.explainer = e }
}

// WithEventReporter sets the event sink.
func WithEventReporter(r ports.EventReporter) RecommendationOption {
	return func(s *RecommendationService) { s.reporter = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) RecommendationOption {
	return func(s *RecommendationService) { s.metrics = m }
}

// WithRankObserver sets the observer bracketing each request.
func WithRankObserver(o ports.RankObserver) RecommendationOption {
	return func(s *RecommendationService) { s.observer = o }
}

// WithMaxConcurrency bounds concurrent explanation lookups. Values below 1
// are ignored.
func WithMaxConcurrency(n int) RecommendationOption {
	return func(s *RecommendationService) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithExplainTimeout bounds each explanation lookup. Zero leaves lookups
// bounded only by the provider.
func WithExplainTimeout(d time.Duration) RecommendationOption {
	return func(s *RecommendationService) { s.explainTimeout = d }
}

// NewRecommendationService creates a service reading from source.
func NewRecommendationService(source ports.CandidateSource, opts ...RecommendationOption) (*RecommendationService, error) {
	if source == nil {
		return nil, fmt.Errorf("candidate source is required")
	}
	s := &RecommendationService{
		source:         source,
		maxConcurrency: DefaultMaxConcurrency,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Recommend fetches the dataset, ranks it for req, and fills in an
// explanation for every result.
//
// An invalid preference returns an error wrapping domain.ErrInvalidPreference
// before anything is fetched. A fetch failure returns ErrFetchFailed together
// with a Recommendation whose Results is empty. Explanation failures never
// fail the request; the affected results carry the fallback text.
func (s *RecommendationService) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	start := s.now()
	ctx, requestID := logging.EnsureRequestID(ctx)
	log := logging.Ctx(ctx)

	rec := Recommendation{
		Results: []domain.ScoredCandidate{},
		Meta:    Meta{RequestID: requestID, WetPref: req.Wet, WidthPref: req.Width},
	}
	if !req.Wet.Valid() {
		return rec, fmt.Errorf("%w: wet preference %q", domain.ErrInvalidPreference, req.Wet)
	}
	if !req.Width.Valid() {
		return rec, fmt.Errorf("%w: width preference %q", domain.ErrInvalidPreference, req.Width)
	}

	if s.observer != nil {
		ctx = s.observer.PreRank(ctx, req.Wet, req.Width)
	}
	var outcome ports.RankOutcome
	finish := func(err error) {
		elapsed := s.now().Sub(start)
		rec.Meta.ElapsedMS = elapsed.Milliseconds()
		if s.observer != nil {
			s.observer.PostRank(ctx, outcome, elapsed, err)
		}
	}

	candidates, err := s.source.ListCandidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch candidates")
		s.count(ports.MetricFetchFailures, map[string]string{"source": sourceName(err)})
		s.report(ctx, ports.EventFetchFailed, map[string]string{"error": err.Error()})
		finish(err)
		return rec, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	results, err := domain.Rank(candidates, req.Wet, req.Width)
	if err != nil {
		finish(err)
		return rec, err
	}

	rec.Meta.Candidates = len(candidates)
	rec.Meta.Eligible = domain.CountEligible(candidates)
	rec.Meta.Fallbacks = s.explain(ctx, results, req.Wet)
	rec.Results = results

	outcome = ports.RankOutcome{
		Candidates: rec.Meta.Candidates,
		Eligible:   rec.Meta.Eligible,
		Fallbacks:  rec.Meta.Fallbacks,
		TopIDs:     topIDs(results),
	}
	finish(nil)

	log.Info().
		Str("wet_pref", string(req.Wet)).
		Str("width_pref", string(req.Width)).
		Int("candidates", rec.Meta.Candidates).
		Int("eligible", rec.Meta.Eligible).
		Int("results", len(results)).
		Int("fallbacks", rec.Meta.Fallbacks).
		Int64("elapsed_ms", rec.Meta.ElapsedMS).
		Msg("recommendation ready")

	attrs := map[string]string{
		"wet_pref":   string(req.Wet),
		"width_pref": string(req.Width),
	}
	for i, r := range results {
		attrs[fmt.Sprintf("top%d", i+1)] = r.ID
	}
	s.report(ctx, ports.EventRecommendationShown, attrs)

	return rec, nil
}

// explain fills in results[i].Explanation for every result. Lookups run
// concurrently and each one settles on its own: a failure substitutes the
// fallback for that result only. It returns the number of fallbacks.
func (s *RecommendationService) explain(ctx context.Context, results []domain.ScoredCandidate, wet domain.WetPreference) int {
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i := range results {
		g.Go(func() error {
			results[i] = s.explainOne(ctx, results[i], wet)
			return nil
		})
	}
	_ = g.Wait()

	fallbacks := 0
	for _, r := range results {
		if r.Fallback {
			fallbacks++
		}
	}
	return fallbacks
}

func (s *RecommendationService) explainOne(ctx context.Context, sc domain.ScoredCandidate, wet domain.WetPreference) (out domain.ScoredCandidate) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", r).
				Str("tire_id", sc.ID).
				Msg("explainer panicked, using fallback")
			s.count(ports.MetricExplanations, map[string]string{"outcome": "fallback"})
			out = sc.WithFallback(wet)
		}
	}()

	if s.explainer == nil {
		s.count(ports.MetricExplanations, map[string]string{"outcome": "fallback"})
		return sc.WithFallback(wet)
	}

	lookupCtx := ctx
	if s.explainTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.explainTimeout)
		defer cancel()
	}

	text, err := s.explainer.Explain(lookupCtx, ports.ExplainRequest{Tire: sc, WetPref: wet})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ports.ErrExplanationUnavailable
	}
	if err != nil {
		// Offline explainers report the sentinel directly; that is expected.
		event := logging.Ctx(ctx).Warn()
		if isBareUnavailable(err) {
			event = logging.Ctx(ctx).Debug()
		}
		event.Err(err).Str("tire_id", sc.ID).Msg("explanation unavailable, using fallback")
		s.count(ports.MetricExplanations, map[string]string{"outcome": "fallback"})
		return sc.WithFallback(wet)
	}

	s.count(ports.MetricExplanations, map[string]string{"outcome": "provider"})
	sc.Explanation = text
	sc.Fallback = false
	return sc
}

func (s *RecommendationService) count(metric string, labels map[string]string) {
	if s.metrics != nil {
		s.metrics.RecordCounter(metric, 1, labels)
	}
}

func (s *RecommendationService) report(ctx context.Context, event string, attrs map[string]string) {
	if s.reporter != nil {
		s.reporter.Report(ctx, event, attrs)
	}
}

func topIDs(results []domain.ScoredCandidate) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func sourceName(err error) string {
	var serr *ports.SourceError
	if errors.As(err, &serr) {
		return serr.Source
	}
	return "unknown"
}

// isBareUnavailable reports whether err has no cause beyond
// ErrExplanationUnavailable, which is how offline explainers decline.
func isBareUnavailable(err error) bool {
	var xerr *ports.ExplainError
	if errors.As(err, &xerr) {
		err = xerr.Err
	}
	return errors.Is(err, ports.ErrExplanationUnavailable)
}

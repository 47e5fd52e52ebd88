package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// FeedbackService validates and stores feedback.
type FeedbackService struct {
	sink     ports.FeedbackSink
	reporter ports.EventReporter
	metrics  ports.MetricsCollector
	now      func() time.Time
}

// NewFeedbackService creates a service writing to sink. reporter and metrics
// may be nil.
func NewFeedbackService(sink ports.FeedbackSink, reporter ports.EventReporter, metrics ports.MetricsCollector) (*FeedbackService, error) {
	if sink == nil {
		return nil, fmt.Errorf("feedback sink is required")
	}
	return &FeedbackService{sink: sink, reporter: reporter, metrics: metrics, now: time.Now}, nil
}

// Submit validates fb and writes it once. Validation failures wrap
// domain.ErrInvalidFeedback; sink failures wrap ports.ErrFeedbackRejected.
// Nothing is retried.
func (s *FeedbackService) Submit(ctx context.Context, fb domain.Feedback) error {
	log := logging.Ctx(ctx)

	if err := fb.Validate(); err != nil {
		s.count("invalid")
		return err
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now().UTC()
	}

	if err := s.sink.SaveFeedback(ctx, fb); err != nil {
		log.Error().Err(err).Str("helpfulness", string(fb.Helpfulness)).Msg("failed to save feedback")
		s.count("rejected")
		if errors.Is(err, ports.ErrFeedbackRejected) {
			return err
		}
		return fmt.Errorf("%w: %w", ports.ErrFeedbackRejected, err)
	}

	s.count("accepted")
	if s.reporter != nil {
		s.reporter.Report(ctx, ports.EventFeedbackSubmitted, map[string]string{
			"helpfulness":   string(fb.Helpfulness),
			"q1_importance": string(fb.Q1Importance),
			"q2_width_pref": string(fb.Q2WidthPref),
		})
	}
	return nil
}

func (s *FeedbackService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCounter(ports.MetricFeedback, 1, map[string]string{"outcome": outcome})
	}
}

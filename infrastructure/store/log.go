package store

import (
	"context"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// LogFeedbackSink writes feedback records to the application log. It is the
// sink used when no database is configured and never fails.
type LogFeedbackSink struct{}

var _ ports.FeedbackSink = LogFeedbackSink{}

// SaveFeedback implements ports.FeedbackSink.
func (LogFeedbackSink) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	logging.Ctx(ctx).Info().
		Str("helpfulness", string(fb.Helpfulness)).
		Str("q1_importance", string(fb.Q1Importance)).
		Str("q2_width_pref", string(fb.Q2WidthPref)).
		Str("top1", fb.Top1).
		Str("top2", fb.Top2).
		Str("top3", fb.Top3).
		Time("created_at", fb.CreatedAt).
		Msg("feedback")
	return nil
}

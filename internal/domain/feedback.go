package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Helpfulness is the user's verdict on a set of recommendations.
type Helpfulness string

// Supported helpfulness values.
const (
	Helpful   Helpfulness = "helpful"
	Neutral   Helpfulness = "neutral"
	Unhelpful Helpfulness = "unhelpful"
)

// Valid reports whether h is a supported helpfulness value.
func (h Helpfulness) Valid() bool {
	switch h {
	case Helpful, Neutral, Unhelpful:
		return true
	}
	return false
}

// MaxTopLength bounds each top1..top3 summary string.
const MaxTopLength = 200

// Feedback is one user response to a recommendation. Top1..Top3 hold the
// summaries of the shown results, empty when fewer were shown.
type Feedback struct {
	Helpfulness  Helpfulness     `json:"helpfulness" db:"helpfulness"`
	Q1Importance WetPreference   `json:"q1_importance" db:"q1_importance"`
	Q2WidthPref  WidthPreference `json:"q2_width_pref" db:"q2_width_pref"`
	Top1         string          `json:"top1" db:"top1"`
	Top2         string          `json:"top2" db:"top2"`
	Top3         string          `json:"top3" db:"top3"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Validate checks every field and reports all failures at once.
func (f Feedback) Validate() error {
	verr := NewValidationError("feedback")
	if !f.Helpfulness.Valid() {
		verr.AddError(fmt.Sprintf("helpfulness %q must be one of helpful, neutral, unhelpful", f.Helpfulness))
	}
	if !f.Q1Importance.Valid() {
		verr.AddError(fmt.Sprintf("q1_importance %q must be one of very, normal, not", f.Q1Importance))
	}
	if !f.Q2WidthPref.Valid() {
		verr.AddError(fmt.Sprintf("q2_width_pref %q must be one of narrow, wide", f.Q2WidthPref))
	}
	for i, top := range []string{f.Top1, f.Top2, f.Top3} {
		if utf8.RuneCountInString(top) > MaxTopLength {
			verr.AddError(fmt.Sprintf("top%d exceeds %d characters", i+1, MaxTopLength))
		}
	}
	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, verr)
	}
	return nil
}

// SummarizeTop renders the first three results as feedback summary strings.
// Missing slots are empty.
func SummarizeTop(results []ScoredCandidate) [TopN]string {
	var out [TopN]string
	for i := 0; i < TopN && i < len(results); i++ {
		out[i] = results[i].Summary()
	}
	return out
}

// NewFeedback assembles a feedback record for the results that were shown.
func NewFeedback(h Helpfulness, wet WetPreference, width WidthPreference, results []ScoredCandidate) Feedback {
	top := SummarizeTop(results)
	return Feedback{
		Helpfulness:  h,
		Q1Importance: wet,
		Q2WidthPref:  width,
		Top1:         top[0],
		Top2:         top[1],
		Top3:         top[2],
	}
}

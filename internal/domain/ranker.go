package domain

import (
	"cmp"
	"fmt"
	"slices"
)

const (
	// TopN is the maximum number of recommendations returned by Rank.
	TopN = 3

	// RRBaseline is the rolling resistance, in watts, that normalizes to zero.
	// Tires rolling harder than the baseline get a negative contribution.
	RRBaseline = 30.0
)

// Score computes a candidate's weighted score from its wet-grip value and
// rolling resistance.
func Score(wg, rr float64, w Weights) float64 {
	return wg*w.WetGrip + (RRBaseline-rr)*w.RollingResistance
}

// ScoreCandidate derives wg, rr, rr_norm and the score for an eligible
// candidate. It returns false if the candidate is missing a measurement.
func ScoreCandidate(c Candidate, w Weights) (ScoredCandidate, bool) {
	if !c.Eligible() {
		return ScoredCandidate{}, false
	}
	wg := min(*c.WetCenter, *c.WetEdge)
	rr := *c.RRHighW
	return ScoredCandidate{
		Candidate: c,
		WG:        wg,
		RR:        rr,
		RRNorm:    RRBaseline - rr,
		Weights:   w,
		Score:     Score(wg, rr, w),
	}, true
}

// Rank selects up to TopN candidates for the given preferences.
//
// Ineligible candidates are dropped. The rest are split into those whose
// width is in the preferred set and the others, each partition is sorted by
// score descending with ties kept in input order, and preferred candidates are
// taken before any other regardless of score. Explanations are left empty.
//
// Rank is pure and does not modify candidates.
func Rank(candidates []Candidate, wet WetPreference, width WidthPreference) ([]ScoredCandidate, error) {
	weights, ok := wet.Weights()
	if !ok {
		return nil, fmt.Errorf("%w: wet preference %q", ErrInvalidPreference, wet)
	}
	if !width.Valid() {
		return nil, fmt.Errorf("%w: width preference %q", ErrInvalidPreference, width)
	}

	var preferred, others []ScoredCandidate
	for _, c := range candidates {
		sc, ok := ScoreCandidate(c, weights)
		if !ok {
			continue
		}
		if width.Matches(c.Width()) {
			sc.PreferredWidth = true
			preferred = append(preferred, sc)
		} else {
			others = append(others, sc)
		}
	}

	byScoreDesc := func(a, b ScoredCandidate) int { return cmp.Compare(b.Score, a.Score) }
	slices.SortStableFunc(preferred, byScoreDesc)
	slices.SortStableFunc(others, byScoreDesc)

	out := make([]ScoredCandidate, 0, TopN)
	for _, part := range [][]ScoredCandidate{preferred, others} {
		for _, sc := range part {
			if len(out) == TopN {
				return out, nil
			}
			out = append(out, sc)
		}
	}
	return out, nil
}

// CountEligible returns how many candidates carry every scoring measurement.
func CountEligible(candidates []Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Eligible() {
			n++
		}
	}
	return n
}

package domain

import "fmt"

// Thresholds used by the fallback explanation rules.
const (
	StrongWetGrip        = 75.0
	LowRollingResistance = 12.0
)

// FallbackTag returns the short rule-based tag describing a scored tire for
// the given wet preference. The first matching rule wins. Unsupported
// preferences are treated as normal.
func FallbackTag(wg, rr float64, wet WetPreference) string {
	strongWet := wg >= StrongWetGrip
	lowRR := rr <= LowRollingResistance

	switch wet {
	case WetVery:
		if strongWet {
			return "wet-priority, strong grip"
		}
		return "acceptable wet performance"
	case WetNot:
		if lowRR {
			return "efficiency-optimized, low resistance"
		}
		return "balanced"
	default:
		switch {
		case strongWet && lowRR:
			return "all-around, wet+efficient"
		case strongWet:
			return "wet-focused, acceptable efficiency"
		case lowRR:
			return "efficiency-focused, acceptable wet"
		default:
			return "balanced, daily-use"
		}
	}
}

// FallbackExplanation renders the deterministic explanation shown when the
// explanation provider fails. It depends only on wg, rr and the preference.
func FallbackExplanation(wg, rr float64, wet WetPreference) string {
	return fmt.Sprintf("%s (wet grip %.1f, rolling resistance %.1f W)", FallbackTag(wg, rr, wet), wg, rr)
}

// WithFallback returns sc with its explanation replaced by the fallback.
func (sc ScoredCandidate) WithFallback(wet WetPreference) ScoredCandidate {
	sc.Explanation = FallbackExplanation(sc.WG, sc.RR, wet)
	sc.Fallback = true
	return sc
}

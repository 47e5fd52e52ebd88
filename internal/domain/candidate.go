// Package domain holds the tire recommendation model: candidates fetched from
// the dataset, the user's two preference answers, the pure ranking algorithm,
// and the deterministic fallback explanations used when the explanation
// provider is unavailable.
//
// Nothing in this package performs I/O. Fetching, explanation lookups, and
// feedback persistence live behind the interfaces in internal/ports.
package domain

import "fmt"

// Candidate is one row of the tire dataset. Measured fields are pointers
// because the dataset leaves them null for tires that were never tested.
type Candidate struct {
	// ID uniquely identifies the tire within the dataset.
	ID string `json:"id" db:"id" yaml:"id"`

	// Brand and Model are display strings.
	Brand string `json:"brand" db:"brand" yaml:"brand"`
	Model string `json:"model" db:"model" yaml:"model"`

	// WidthSpecMM is the nominal width in millimeters, if known.
	WidthSpecMM *int `json:"width_spec_mm,omitempty" db:"width_spec_mm" yaml:"width_spec_mm"`

	// WetCenter and WetEdge are the wet-grip sub-scores measured on the
	// tread center and the shoulder. Higher is better.
	WetCenter *float64 `json:"wet_center,omitempty" db:"wet_center" yaml:"wet_center"`
	WetEdge   *float64 `json:"wet_edge,omitempty" db:"wet_edge" yaml:"wet_edge"`

	// RRHighW is the rolling resistance in watts at the high-load test point.
	// Lower is better.
	RRHighW *float64 `json:"rr_high_w,omitempty" db:"rr_high_w" yaml:"rr_high_w"`

	// Price and SourceSite are optional display metadata.
	Price      *float64 `json:"price,omitempty" db:"price" yaml:"price"`
	SourceSite *string  `json:"source_site,omitempty" db:"source_site" yaml:"source_site"`
}

// Eligible reports whether the candidate carries every measurement needed for
// scoring. Ineligible candidates are dropped before ranking.
func (c Candidate) Eligible() bool {
	return c.WetCenter != nil && c.WetEdge != nil && c.RRHighW != nil
}

// Width returns the nominal width, treating a missing width as 0 so it never
// matches a preferred width set.
func (c Candidate) Width() int {
	if c.WidthSpecMM == nil {
		return 0
	}
	return *c.WidthSpecMM
}

// DisplayName renders the candidate as "<brand> <model>".
func (c Candidate) DisplayName() string {
	switch {
	case c.Brand == "":
		return c.Model
	case c.Model == "":
		return c.Brand
	default:
		return c.Brand + " " + c.Model
	}
}

// Summary renders the candidate the way feedback records reference it:
// "<brand> <model> (<width>mm)", omitting the width when unknown.
func (c Candidate) Summary() string {
	if c.WidthSpecMM == nil {
		return c.DisplayName()
	}
	return fmt.Sprintf("%s (%dmm)", c.DisplayName(), *c.WidthSpecMM)
}

// ScoredCandidate is an eligible candidate together with the values derived
// from it during a single ranking request.
type ScoredCandidate struct {
	Candidate

	// WG is the wet-grip value, min(WetCenter, WetEdge).
	WG float64 `json:"wg"`

	// RR is the rolling-resistance value, RRHighW.
	RR float64 `json:"rr"`

	// RRNorm is RRBaseline - RR. It is negative for RR above the baseline.
	RRNorm float64 `json:"rr_norm"`

	// Weights are the weights the score was computed with.
	Weights Weights `json:"weights"`

	// Score is WG*Weights.WetGrip + RRNorm*Weights.RollingResistance.
	Score float64 `json:"score"`

	// PreferredWidth reports whether the candidate matched the width
	// preference of the request.
	PreferredWidth bool `json:"preferred_width"`

	// Explanation is filled in after ranking, either by the explanation
	// provider or by FallbackExplanation.
	Explanation string `json:"explanation"`

	// Fallback is true when Explanation came from FallbackExplanation.
	Fallback bool `json:"fallback"`
}

// Float64 returns a pointer to v. It keeps fixtures and tests readable.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// WetPreference is the answer to "how important is wet grip to you?".
type WetPreference string

// Supported wet preferences.
const (
	WetVery   WetPreference = "very"
	WetNormal WetPreference = "normal"
	WetNot    WetPreference = "not"
)

// WidthPreference is the answer to "narrow or wide tires?".
type WidthPreference string

// Supported width preferences.
const (
	WidthNarrow WidthPreference = "narrow"
	WidthWide   WidthPreference = "wide"
)

// Weights is the pair of multipliers applied to the wet-grip value and the
// normalized rolling resistance. The pair is applied as given and need not
// sum to 1.
type Weights struct {
	WetGrip           float64 `json:"wg_weight"`
	RollingResistance float64 `json:"rr_weight"`
}

var weightTable = map[WetPreference]Weights{
	WetVery:   {WetGrip: 0.8, RollingResistance: 0.2},
	WetNormal: {WetGrip: 0.6, RollingResistance: 0.4},
	WetNot:    {WetGrip: 0.35, RollingResistance: 0.65},
}

var widthTable = map[WidthPreference][]int{
	WidthNarrow: {28},
	WidthWide:   {30, 32},
}

// WetPreferences lists the supported wet preferences in display order.
func WetPreferences() []WetPreference { return []WetPreference{WetVery, WetNormal, WetNot} }

// WidthPreferences lists the supported width preferences in display order.
func WidthPreferences() []WidthPreference { return []WidthPreference{WidthNarrow, WidthWide} }

// Valid reports whether p is a supported wet preference.
func (p WetPreference) Valid() bool {
	_, ok := weightTable[p]
	return ok
}

// Weights returns the fixed weight pair for p. The second result is false
// for unsupported values.
func (p WetPreference) Weights() (Weights, bool) {
	w, ok := weightTable[p]
	return w, ok
}

// Valid reports whether p is a supported width preference.
func (p WidthPreference) Valid() bool {
	_, ok := widthTable[p]
	return ok
}

// Widths returns the preferred width set for p, or nil for unsupported values.
func (p WidthPreference) Widths() []int {
	return slices.Clone(widthTable[p])
}

// Matches reports whether a width in millimeters is in the preferred set.
// A width of 0 (unknown) never matches.
func (p WidthPreference) Matches(widthMM int) bool {
	return slices.Contains(widthTable[p], widthMM)
}

// ParseWetPreference parses user input into a WetPreference. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseWetPreference(s string) (WetPreference, error) {
	norm := normalize(s)
	p := WetPreference(norm)
	if p.Valid() {
		return p, nil
	}

	options := make([]string, 0, len(weightTable))
	for _, v := range WetPreferences() {
		options = append(options, string(v))
	}
	return "", &PreferenceError{Field: "wet_pref", Value: s, Suggestion: closest(norm, options)}
}

// ParseWidthPreference parses user input into a WidthPreference. Besides the
// names it accepts a bare width ("28", "30mm") that belongs to one of the sets.
func ParseWidthPreference(s string) (WidthPreference, error) {
	norm := normalize(s)
	p := WidthPreference(norm)
	if p.Valid() {
		return p, nil
	}

	digits := strings.TrimSuffix(norm, "mm")
	for _, pref := range WidthPreferences() {
		for _, w := range widthTable[pref] {
			if digits == strconv.Itoa(w) {
				return pref, nil
			}
		}
	}

	options := make([]string, 0, len(widthTable))
	for _, v := range WidthPreferences() {
		options = append(options, string(v))
	}
	return "", &PreferenceError{Field: "width_pref", Value: s, Suggestion: closest(norm, options)}
}

// maxSuggestionDistance bounds how far a typo may be from a supported value
// before no suggestion is offered.
const maxSuggestionDistance = 2

func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func closest(input string, options []string) string {
	if input == "" {
		return ""
	}
	best, bestDist := "", maxSuggestionDistance+1
	for _, opt := range options {
		if d := levenshtein.ComputeDistance(input, opt); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best
}

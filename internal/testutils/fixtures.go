package testutils

import "github.com/ahrav/treadpick/internal/domain"

// Tire builds an eligible candidate.
func Tire(id, brand, model string, width int, wetCenter, wetEdge, rr float64) domain.Candidate {
	return domain.Candidate{
		ID:          id,
		Brand:       brand,
		Model:       model,
		WidthSpecMM: domain.Int(width),
		WetCenter:   domain.Float64(wetCenter),
		WetEdge:     domain.Float64(wetEdge),
		RRHighW:     domain.Float64(rr),
	}
}

// WorkedExample is the three-tire dataset whose not/narrow ranking is
// item1, item3, item2.
func WorkedExample() []domain.Candidate {
	return []domain.Candidate{
		Tire("item1", "Alpha", "Road", 28, 70, 75, 10),
		Tire("item2", "Beta", "Aero", 30, 90, 95, 8),
		Tire("item3", "Gamma", "Tour", 28, 60, 65, 20),
	}
}

// MixedDataset has eligible and ineligible rows across every width.
func MixedDataset() []domain.Candidate {
	return []domain.Candidate{
		Tire("gp5000-28", "Continental", "GP5000 S TR", 28, 78, 74, 10.8),
		Tire("corsa-28", "Vittoria", "Corsa Pro", 28, 81, 79, 9.6),
		Tire("pro-one-30", "Schwalbe", "Pro One", 30, 72, 70, 11.2),
		Tire("p-zero-32", "Pirelli", "P Zero Race", 32, 76, 80, 12.4),
		Tire("grand-prix-30", "Continental", "Grand Prix 5000", 30, 68, 66, 13.9),
		{ID: "untested", Brand: "Generic", Model: "Trainer", WidthSpecMM: domain.Int(28), RRHighW: domain.Float64(20)},
		{ID: "no-width", Brand: "Mystery", Model: "X", WetCenter: domain.Float64(90), WetEdge: domain.Float64(90), RRHighW: domain.Float64(8)},
	}
}

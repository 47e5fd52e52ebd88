package explain

import (
	"context"

	"github.com/ahrav/treadpick/internal/ports"
)

// StaticExplainer never produces text, so every result uses the
// deterministic fallback. It backs offline runs and deployments with no
// explainer configured.
type StaticExplainer struct{}

var _ ports.Explainer = StaticExplainer{}

// Explain implements ports.Explainer.
func (StaticExplainer) Explain(_ context.Context, req ports.ExplainRequest) (string, error) {
	return "", ports.NewExplainError("static", req.Tire.ID, ports.ErrExplanationUnavailable)
}

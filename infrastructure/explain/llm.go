// Package explain implements ports.Explainer backends: an LLM prompt, a
// hosted HTTP function, and a static offline explainer that always defers to
// the deterministic fallback.
package explain

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ahrav/treadpick/internal/ports"
)

// DefaultPrompt asks for a one- or two-sentence explanation as JSON.
const DefaultPrompt = `You are a cycling tire expert helping a rider choose road tires.

The rider said wet grip matters: {{.WetPref}}.

Tire: {{.Tire.Brand}} {{.Tire.Model}}{{if .Tire.WidthSpecMM}} ({{deref .Tire.WidthSpecMM}}mm){{end}}
Wet grip (worst of center and edge): {{printf "%.1f" .Tire.WG}} (higher is better)
Rolling resistance: {{printf "%.1f" .Tire.RR}} W (lower is better)
Score for this rider: {{printf "%.1f" .Tire.Score}}

In at most two sentences, explain why this tire fits the rider's priorities.
Respond only with JSON: {"explanation": "..."}`

// MaxExplanationLength bounds accepted explanations, in runes.
const MaxExplanationLength = 600

// LLMConfig configures an LLMExplainer.
type LLMConfig struct {
	// Prompt is a text/template rendered with the ports.ExplainRequest.
	Prompt string `validate:"required,min=20"`

	Temperature float64 `validate:"min=0,max=2"`
	MaxTokens   int     `validate:"min=16,max=2000"`
}

// DefaultLLMConfig returns the configuration used when none is supplied.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{Prompt: DefaultPrompt, Temperature: 0.3, MaxTokens: 200}
}

type llmResponse struct {
	Explanation string `json:"explanation" validate:"required,max=600"`
}

// LLMExplainer renders a prompt for each tire and parses the model's JSON
// answer.
type LLMExplainer struct {
	client    ports.LLMClient
	cfg       LLMConfig
	tmpl      *template.Template
	validator *validator.Validate
}

var _ ports.Explainer = (*LLMExplainer)(nil)

// NewLLMExplainer validates cfg and compiles its prompt.
func NewLLMExplainer(client ports.LLMClient, cfg LLMConfig) (*LLMExplainer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid explainer config: %w", err)
	}
	tmpl, err := template.New("explain").
		Funcs(template.FuncMap{"deref": func(p *int) int { return *p }}).
		Parse(cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &LLMExplainer{client: client, cfg: cfg, tmpl: tmpl, validator: v}, nil
}

// Explain implements ports.Explainer.
func (e *LLMExplainer) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	var prompt bytes.Buffer
	if err := e.tmpl.Execute(&prompt, req); err != nil {
		return "", ports.NewExplainError("llm", req.Tire.ID, fmt.Errorf("rendering prompt: %w", err))
	}

	raw, err := e.client.Complete(ctx, prompt.String(), map[string]any{
		"temperature": e.cfg.Temperature,
		"max_tokens":  e.cfg.MaxTokens,
		"json":        true,
	})
	if err != nil {
		return "", ports.NewExplainError("llm", req.Tire.ID, err)
	}

	text, err := e.parse(raw)
	if err != nil {
		return "", ports.NewExplainError("llm", req.Tire.ID, err)
	}
	return text, nil
}

func (e *LLMExplainer) parse(raw string) (string, error) {
	obj := extractJSON(raw)
	if obj == "" {
		return "", fmt.Errorf("%w: no JSON object in response", ports.ErrInvalidResponse)
	}
	var resp llmResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err)
	}
	resp.Explanation = strings.TrimSpace(resp.Explanation)
	if err := e.validator.Struct(resp); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err)
	}
	return resp.Explanation, nil
}

// extractJSON returns the first JSON object in s, looking inside markdown
// code fences first. It returns "" if none is found.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			s = strings.TrimSpace(body[:j])
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

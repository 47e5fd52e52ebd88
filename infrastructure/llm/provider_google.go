package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when no model is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

type googleProvider struct {
	baseProvider
	client *genai.Client
}

func newGoogleProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	base, err := ValidateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base != "" {
		cc.HTTPOptions.BaseURL = base
	}
	if t := clampTimeout(cfg.Timeout); t > 0 {
		cc.HTTPClient = &http.Client{Timeout: t}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &googleProvider{baseProvider: baseProvider{model: model}, client: client}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ro := ParseRequestOptions(opts, p.GetModel())

	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(ro.MaxTokens, math.MaxInt32)),
	}
	if ro.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*ro.Temperature))
	}
	if ro.TopP != nil {
		gc.TopP = genai.Ptr(float32(*ro.TopP))
	}
	if ro.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(ro.System, genai.RoleUser)
	}
	if jsonMode, _ := optionValue[bool](ro.Extra, "json"); jsonMode {
		gc.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, ro.Model, contents, gc)
	if err != nil {
		return "", 0, 0, p.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return "", 0, 0, NewProviderError("google", ErrorTypeContentPolicy, 0, "no text in response", ErrEmptyResponse)
	}

	var in, out int64
	if u := resp.UsageMetadata; u != nil {
		in, out = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	return text, usageOrEstimate(in, prompt), usageOrEstimate(out, text), nil
}

func (p *googleProvider) classify(err error) error {
	if perr := contextError("google", err); perr != nil {
		return perr
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if blockedBySafety(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code, "blocked by safety filters", err)
		}
		msg := apiErr.Message
		if msg == "" && len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0].Message
		}
		return httpError("google", apiErr.Code, msg, err)
	}
	return NewProviderError("google", ErrorTypeNetwork, 0, "request failed", err)
}

func blockedBySafety(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "SAFETY" || item.Reason == "BLOCKED" {
			return true
		}
	}
	lower := strings.ToLower(apiErr.Message)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}

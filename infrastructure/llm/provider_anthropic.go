package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when no model is configured.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

type anthropicProvider struct {
	baseProvider
	client anthropic.Client
}

func newAnthropicProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	base, err := ValidateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if t := clampTimeout(cfg.Timeout); t > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: t}))
	}

	return &anthropicProvider{
		baseProvider: baseProvider{model: model},
		client:       anthropic.NewClient(reqOpts...),
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ro := ParseRequestOptions(opts, p.GetModel())

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(ro.Model),
		MaxTokens: int64(ro.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if ro.Temperature != nil {
		// Anthropic accepts [0, 1].
		params.Temperature = anthropic.Float(min(*ro.Temperature, 1))
	}
	if ro.TopP != nil {
		params.TopP = anthropic.Float(*ro.TopP)
	}
	if ro.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: ro.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	content := sb.String()
	if content == "" {
		return "", 0, 0, NewProviderError("anthropic", ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}
	return content,
		usageOrEstimate(msg.Usage.InputTokens, prompt),
		usageOrEstimate(msg.Usage.OutputTokens, content),
		nil
}

func (p *anthropicProvider) classify(err error) error {
	if perr := contextError("anthropic", err); perr != nil {
		return perr
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return httpError("anthropic", apiErr.StatusCode, "", err)
	}
	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}

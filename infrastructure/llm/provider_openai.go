package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when no model is configured.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

type openAIProvider struct {
	baseProvider
	client *openai.Client
}

func newOpenAIProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	base, err := ValidateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base != "" {
		conf.BaseURL = base
	}
	if t := clampTimeout(cfg.Timeout); t > 0 {
		conf.HTTPClient = &http.Client{Timeout: t}
	}

	return &openAIProvider{
		baseProvider: baseProvider{model: model},
		client:       openai.NewClientWithConfig(conf),
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ro := ParseRequestOptions(opts, p.GetModel())

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if ro.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: ro.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:     ro.Model,
		Messages:  msgs,
		MaxTokens: ro.MaxTokens,
	}
	if ro.Temperature != nil {
		req.Temperature = float32(*ro.Temperature)
	}
	if ro.TopP != nil {
		req.TopP = float32(*ro.TopP)
	}
	if jsonMode, _ := optionValue[bool](ro.Extra, "json"); jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, NewProviderError("openai", ErrorTypeUnknown, 0, "", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", 0, 0, NewProviderError("openai", ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}
	return content,
		usageOrEstimate(int64(resp.Usage.PromptTokens), prompt),
		usageOrEstimate(int64(resp.Usage.CompletionTokens), content),
		nil
}

func (p *openAIProvider) classify(err error) error {
	if perr := contextError("openai", err); perr != nil {
		return perr
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return httpError("openai", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return httpError("openai", reqErr.HTTPStatusCode, "", err)
	}
	return NewProviderError("openai", ErrorTypeNetwork, 0, "request failed", err)
}

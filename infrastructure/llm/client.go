// Package llm provides a provider-agnostic LLM client used to generate tire
// explanations.
//
// Each provider (OpenAI, Anthropic, Google) implements the small CoreLLM
// interface and registers a factory in its init function. Cross-cutting
// behavior such as timeouts, retries, rate limiting, circuit breaking,
// metrics, and tracing is layered on with Middleware, so a Client is just a
// provider wrapped in a chain:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("treadpick"),
//	        llm.MetricsMiddleware(collector),
//	        llm.CircuitBreakerMiddleware(llm.BreakerSettings{MaxFailures: 5, Cooldown: 30 * time.Second}),
//	        llm.TimeoutMiddleware(8 * time.Second),
//	    },
//	})
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/treadpick/internal/ports"
)

// CoreLLM is the minimal contract a provider implements. Middleware wraps
// CoreLLM values, so every layer exposes token usage to the layers above it.
type CoreLLM interface {
	// DoRequest sends prompt to the provider and returns the response text
	// with input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the model requests are sent to.
	GetModel() string

	// SetModel changes the model for subsequent requests.
	SetModel(model string)
}

// Middleware wraps a CoreLLM to add behavior around DoRequest.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig configures a Client.
type ClientConfig struct {
	// APIKey authenticates against the provider.
	APIKey string

	// Model is the provider model identifier.
	Model string

	// BaseURL overrides the provider endpoint. Tests point it at httptest
	// servers.
	BaseURL string

	// Timeout bounds the provider's HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// Middleware is applied so that Middleware[0] is the outermost layer.
	Middleware []Middleware
}

// Client adapts a middleware-wrapped CoreLLM to ports.LLMClient.
type Client struct {
	core CoreLLM
}

var _ ports.LLMClient = (*Client)(nil)

// ErrMissingAPIKey is returned when a provider is built without credentials.
var ErrMissingAPIKey = errors.New("API key is required")

// NewClient builds a client for the registered provider type.
func NewClient(providerType string, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := lookupFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", providerType, err)
	}
	return NewClientFromCore(core, cfg.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is used by tests and by
// callers that construct providers themselves.
func NewClientFromCore(core CoreLLM, mws ...Middleware) *Client {
	return &Client{core: Chain(core, mws...)}
}

// Chain applies mws to core with mws[0] outermost.
func Chain(core CoreLLM, mws ...Middleware) CoreLLM {
	for i := len(mws) - 1; i >= 0; i-- {
		core = mws[i](core)
	}
	return core
}

// Complete implements ports.LLMClient.
func (c *Client) Complete(ctx context.Context, prompt string, opts map[string]any) (string, error) {
	resp, _, _, err := c.core.DoRequest(ctx, prompt, opts)
	return resp, err
}

// CompleteWithUsage is Complete plus the token counts reported by the
// provider.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, opts)
}

// EstimateTokens implements ports.LLMClient with a four-characters-per-token
// heuristic.
func (c *Client) EstimateTokens(text string) (int, error) { return estimateTokens(text), nil }

// GetModel implements ports.LLMClient.
func (c *Client) GetModel() string { return c.core.GetModel() }

func estimateTokens(text string) int { return (len(text) + 3) / 4 }

// usageOrEstimate prefers the provider-reported count.
func usageOrEstimate(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return estimateTokens(text)
}

// ProviderFactory builds a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[providerType] = factory
}

func lookupFactory(providerType string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[providerType]
	return f, ok
}

// RegisteredProviders lists the provider types available to NewClient.
func RegisteredProviders() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// baseProvider holds the model name shared by every provider.
type baseProvider struct {
	mu    sync.RWMutex
	model string
}

func (b *baseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

func (b *baseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

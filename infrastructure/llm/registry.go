package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ProviderConfig describes how the registry builds clients for one provider.
type ProviderConfig struct {
	// EnvVar names the environment variable holding the API key.
	EnvVar string

	// DefaultModel is used when a spec names only the provider.
	DefaultModel string

	// BaseURL optionally overrides the provider endpoint.
	BaseURL string
}

// DefaultProviders are the providers compiled into the binary.
var DefaultProviders = map[string]ProviderConfig{
	"openai":    {EnvVar: "OPENAI_API_KEY", DefaultModel: OpenAIDefaultModel},
	"anthropic": {EnvVar: "ANTHROPIC_API_KEY", DefaultModel: AnthropicDefaultModel},
	"google":    {EnvVar: "GOOGLE_API_KEY", DefaultModel: GoogleDefaultModel},
}

// Spec identifies a provider and model, written "provider/model" in
// configuration. The model part is optional.
type Spec struct {
	Provider string
	Model    string
}

// String renders the spec in "provider/model" form.
func (s Spec) String() string {
	if s.Model == "" {
		return s.Provider
	}
	return s.Provider + "/" + s.Model
}

// ParseSpec splits "provider/model". Model names may themselves contain
// slashes; only the first one separates the provider.
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("empty provider spec")
	}
	provider, model, _ := strings.Cut(raw, "/")
	if provider == "" {
		return Spec{}, fmt.Errorf("provider spec %q has no provider", raw)
	}
	return Spec{Provider: strings.ToLower(provider), Model: model}, nil
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defaults to DefaultProviders.
	Providers map[string]ProviderConfig

	// Timeout is passed to every provider's HTTP client.
	Timeout time.Duration

	// Middleware is applied to every client the registry builds.
	Middleware []Middleware

	// LookupEnv resolves API keys. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Registry builds and caches clients by spec.
type Registry struct {
	cfg     RegistryConfig
	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry creates a registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Providers == nil {
		cfg.Providers = DefaultProviders
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}
	return &Registry{cfg: cfg, clients: map[string]*Client{}}
}

// Client returns the client for a "provider/model" spec, building it on
// first use.
func (r *Registry) Client(raw string) (*Client, error) {
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, err
	}
	pc, ok := r.cfg.Providers[spec.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
	if spec.Model == "" {
		spec.Model = pc.DefaultModel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[spec.String()]; ok {
		return c, nil
	}

	key, ok := r.cfg.LookupEnv(pc.EnvVar)
	if !ok || key == "" {
		return nil, fmt.Errorf("%s is not set for provider %q: %w", pc.EnvVar, spec.Provider, ErrMissingAPIKey)
	}
	c, err := NewClient(spec.Provider, ClientConfig{
		APIKey:     key,
		Model:      spec.Model,
		BaseURL:    pc.BaseURL,
		Timeout:    r.cfg.Timeout,
		Middleware: r.cfg.Middleware,
	})
	if err != nil {
		return nil, err
	}
	r.clients[spec.String()] = c
	return c, nil
}

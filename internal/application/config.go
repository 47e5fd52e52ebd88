package application

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ahrav/treadpick/infrastructure/llm"
	"github.com/ahrav/treadpick/internal/logging"
)

// EnvPrefix prefixes every environment override. TREADPICK_SERVER_PORT sets
// server.port.
const EnvPrefix = "TREADPICK_"

// ConfigPathEnvVar names the environment variable holding the config file
// path when none is passed explicitly.
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// Config is the complete service configuration. It is loaded in layers:
// built-in defaults, then an optional YAML file, then environment variables.
type Config struct {
	// Server configures the HTTP listener and its edge middleware.
	Server ServerConfig `koanf:"server" validate:"required"`
	// Log configures the global zerolog logger.
	Log logging.Config `koanf:"log"`
	// Source selects where the candidate dataset is read from.
	Source SourceConfig `koanf:"source" validate:"required"`
	// Feedback selects where feedback records are written.
	Feedback FeedbackConfig `koanf:"feedback" validate:"required"`
	// Explain selects and tunes the explanation provider.
	Explain ExplainConfig `koanf:"explain" validate:"required"`
	// Relay configures the chat-ops webhook relay.
	Relay RelayConfig `koanf:"relay"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `koanf:"host"`
	// Port is the TCP port to listen on.
	Port int `koanf:"port" validate:"required,min=1,max=65535"`
	// ReadTimeout bounds reading an entire request.
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"min=0"`
	// WriteTimeout bounds writing a response. It must cover explanation
	// lookups.
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=0"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is the number of requests per RateWindow allowed per client
	// IP. Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`
	// RateWindow is the window RateLimit applies to.
	RateWindow time.Duration `koanf:"rate_window" validate:"min=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// SourceConfig selects the candidate dataset backend.
type SourceConfig struct {
	// Kind is postgres, sqlite3, or file.
	Kind string `koanf:"kind" validate:"required,oneof=postgres sqlite3 file"`
	// DSN is the database connection string for postgres and sqlite3.
	DSN string `koanf:"dsn" validate:"required_unless=Kind file"`
	// Table is the candidate table name.
	Table string `koanf:"table"`
	// Path is the dataset file for kind file.
	Path string `koanf:"path" validate:"required_if=Kind file"`
}

// FeedbackConfig selects the feedback sink.
type FeedbackConfig struct {
	// Kind is postgres, sqlite3, or log. log writes records to the
	// application log only.
	Kind string `koanf:"kind" validate:"required,oneof=postgres sqlite3 log"`
	// DSN defaults to the source DSN when empty.
	DSN string `koanf:"dsn"`
	// Table is the feedback table name.
	Table string `koanf:"table"`
}

// ExplainConfig selects and tunes the explanation provider.
type ExplainConfig struct {
	// Kind is llm, http, or none. none always uses the fallback text.
	Kind string `koanf:"kind" validate:"required,oneof=llm http none"`
	// Provider is a provider/model spec such as openai/gpt-4o-mini, used
	// when Kind is llm.
	Provider string `koanf:"provider" validate:"required_if=Kind llm,omitempty,modelspec"`
	// Endpoint is the hosted function URL, used when Kind is http.
	Endpoint string `koanf:"endpoint" validate:"required_if=Kind http,omitempty,url"`
	// APIKey is sent as a bearer token to Endpoint.
	APIKey string `koanf:"api_key"`
	// Timeout bounds each lookup.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
	// MaxConcurrency bounds concurrent lookups per request.
	MaxConcurrency int `koanf:"max_concurrency" validate:"min=1,max=16"`
	// Temperature and MaxTokens tune LLM lookups.
	Temperature float64 `koanf:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"min=16,max=2000"`
	// RateLimit caps LLM requests per second across the process. Zero
	// disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	// RetryAttempts is the number of provider-level retries. Lookups are
	// never retried above the provider.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=0,max=5"`
	// BreakerFailures consecutive failures open the provider breaker for
	// BreakerCooldown.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"min=0"`
}

// RelayConfig configures the webhook relay.
type RelayConfig struct {
	// WebhookURL is the chat-ops webhook. Empty makes the relay answer 500.
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`
	// Timeout bounds each webhook call.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       60,
			RateWindow:      time.Minute,
		},
		Log: logging.Config{Level: "info", Format: "json"},
		Source: SourceConfig{
			Kind:  "file",
			Table: "tires",
			Path:  "tires.yaml",
		},
		Feedback: FeedbackConfig{
			Kind:  "log",
			Table: "feedback",
		},
		Explain: ExplainConfig{
			Kind:            "none",
			Provider:        "openai/" + llm.OpenAIDefaultModel,
			Timeout:         10 * time.Second,
			MaxConcurrency:  3,
			Temperature:     0.3,
			MaxTokens:       200,
			RateLimit:       5,
			RetryAttempts:   1,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Relay: RelayConfig{Timeout: 10 * time.Second},
	}
}

// sliceConfigPaths are parsed from comma-separated strings when set from the
// environment.
var sliceConfigPaths = []string{"server.cors_origins"}

// LoadConfig loads configuration from defaults, the YAML file at path (or
// $TREADPICK_CONFIG when path is empty; no file is fine), and environment
// variables, then validates it.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		if key == ConfigPathEnvVar {
			return "", nil
		}
		return envKey(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps TREADPICK_SECTION_FIELD_NAME to section.field_name.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + field
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := NewValidator()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Feedback.Kind != "log" && c.Feedback.DSN == "" && c.Source.DSN == "" {
		return fmt.Errorf("invalid config: feedback.dsn is required for feedback kind %s", c.Feedback.Kind)
	}
	return nil
}

// FeedbackDSN returns the feedback DSN, falling back to the source DSN.
func (c *Config) FeedbackDSN() string {
	if c.Feedback.DSN != "" {
		return c.Feedback.DSN
	}
	return c.Source.DSN
}

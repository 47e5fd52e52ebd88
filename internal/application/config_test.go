package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "treadpick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "file", cfg.Source.Kind)
	assert.Equal(t, "log", cfg.Feedback.Kind)
	assert.Equal(t, "none", cfg.Explain.Kind)
	assert.Equal(t, 3, cfg.Explain.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Explain.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors_origins: ["https://tires.example.com"]
log:
  level: debug
  format: console
source:
  kind: postgres
  dsn: postgres://localhost/tires
feedback:
  kind: postgres
explain:
  kind: llm
  provider: anthropic/claude-3-5-haiku-latest
  timeout: 4s
  max_concurrency: 2
relay:
  webhook_url: https://hooks.example.com/abc
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://tires.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Source.Kind)
	assert.Equal(t, "postgres://localhost/tires", cfg.FeedbackDSN())
	assert.Equal(t, "anthropic/claude-3-5-haiku-latest", cfg.Explain.Provider)
	assert.Equal(t, 4*time.Second, cfg.Explain.Timeout)
	assert.Equal(t, 2, cfg.Explain.MaxConcurrency)
	assert.Equal(t, "https://hooks.example.com/abc", cfg.Relay.WebhookURL)
	// Untouched defaults survive.
	assert.Equal(t, 200, cfg.Explain.MaxTokens)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("TREADPICK_SERVER_PORT", "7070")
	t.Setenv("TREADPICK_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TREADPICK_EXPLAIN_MAX_CONCURRENCY", "1")
	t.Setenv("TREADPICK_EXPLAIN_BREAKER_COOLDOWN", "1m")
	t.Setenv("TREADPICK_RELAY_WEBHOOK_URL", "https://hooks.example.com/env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 1, cfg.Explain.MaxConcurrency)
	assert.Equal(t, time.Minute, cfg.Explain.BreakerCooldown)
	assert.Equal(t, "https://hooks.example.com/env", cfg.Relay.WebhookURL)
}

func TestLoadConfig_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6060\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad source kind", content: "source:\n  kind: mongo\n"},
		{name: "postgres without dsn", content: "source:\n  kind: postgres\n"},
		{name: "llm with unknown provider", content: "explain:\n  kind: llm\n  provider: acme/gpt\n"},
		{name: "http without endpoint", content: "explain:\n  kind: http\n"},
		{name: "port out of range", content: "server:\n  port: 70000\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "bad webhook url", content: "relay:\n  webhook_url: not a url\n"},
		{name: "db feedback without dsn", content: "feedback:\n  kind: sqlite3\n"},
		{name: "zero concurrency", content: "explain:\n  max_concurrency: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"TREADPICK_SERVER_PORT":             "server.port",
		"TREADPICK_EXPLAIN_MAX_CONCURRENCY": "explain.max_concurrency",
		"TREADPICK_LOG_LEVEL":               "log.level",
		"TREADPICK_DEBUG":                   "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":8080", ServerConfig{Port: 8080}.Addr())
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
}

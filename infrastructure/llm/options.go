package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Request option limits shared by the providers.
const (
	DefaultMaxTokens = 256
	MaxTemperature   = 2.0
	MinTimeout       = time.Second
	MaxTimeout       = 5 * time.Minute
)

// RequestOptions is the parsed form of the options map passed to DoRequest.
type RequestOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	System      string
	// Extra holds keys no provider-independent field covers.
	Extra map[string]any
}

// ParseRequestOptions reads the well-known keys (model, max_tokens,
// temperature, top_p, system) from opts. Missing or out-of-range values fall
// back to defaults.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	ro := RequestOptions{
		Model:     defaultModel,
		MaxTokens: DefaultMaxTokens,
		Extra:     map[string]any{},
	}
	if m, ok := optionValue[string](opts, "model"); ok && m != "" {
		ro.Model = m
	}
	if n, ok := intOption(opts, "max_tokens"); ok && n > 0 {
		ro.MaxTokens = n
	}
	if s, ok := optionValue[string](opts, "system"); ok {
		ro.System = s
	}
	if t, ok := floatOption(opts, "temperature"); ok && t >= 0 && t <= MaxTemperature {
		ro.Temperature = &t
	}
	if p, ok := floatOption(opts, "top_p"); ok && p >= 0 && p <= 1 {
		ro.TopP = &p
	}
	for k, v := range opts {
		switch k {
		case "model", "max_tokens", "system", "temperature", "top_p":
		default:
			ro.Extra[k] = v
		}
	}
	return ro
}

func optionValue[T any](opts map[string]any, key string) (T, bool) {
	v, ok := opts[key].(T)
	return v, ok
}

// intOption accepts the integer kinds config loaders and JSON decoders produce.
func intOption(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != v {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

func floatOption(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ValidateBaseURL normalizes an endpoint override. An empty string is valid
// and means "use the provider default".
func ValidateBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

// clampTimeout keeps a configured timeout within [MinTimeout, MaxTimeout].
// Non-positive values mean "no override" and are returned as zero.
func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return min(max(d, MinTimeout), MaxTimeout)
}

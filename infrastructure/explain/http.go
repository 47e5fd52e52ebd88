package explain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// HTTPConfig configures an HTTPExplainer.
type HTTPConfig struct {
	// Endpoint is the hosted function URL.
	Endpoint string

	// APIKey, if set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each call.
	Timeout time.Duration

	// MaxFailures consecutive failures open the breaker for Cooldown.
	MaxFailures uint32
	Cooldown    time.Duration
}

// HTTPExplainer posts {tire, wetPref} to a hosted function and reads back
// {explanation}.
type HTTPExplainer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
}

var _ ports.Explainer = (*HTTPExplainer)(nil)

// NewHTTPExplainer builds an explainer for cfg.Endpoint.
func NewHTTPExplainer(cfg HTTPConfig) (*HTTPExplainer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("explain endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "explain-http",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// A malformed answer means the function is up.
			return err == nil || errors.Is(err, ports.ErrInvalidResponse)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("explain circuit breaker state changed")
		},
	})

	return &HTTPExplainer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker,
	}, nil
}

// Explain implements ports.Explainer.
func (e *HTTPExplainer) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	text, err := e.breaker.Execute(func() (string, error) { return e.call(ctx, req) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
		}
		xerr := ports.NewExplainError("http", req.Tire.ID, err)
		var limited *rateLimitError
		if errors.As(err, &limited) {
			xerr.RetryAfter = limited.after
		}
		return "", xerr
	}
	return text, nil
}

func (e *HTTPExplainer) call(ctx context.Context, req ports.ExplainRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ports.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ports.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ports.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp, payload)
	}

	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err)
	}
	text := strings.TrimSpace(out.Explanation)
	if text == "" {
		return "", fmt.Errorf("%w: empty explanation", ports.ErrInvalidResponse)
	}
	if utf8.RuneCountInString(text) > MaxExplanationLength {
		return "", fmt.Errorf("%w: explanation exceeds %d characters", ports.ErrInvalidResponse, MaxExplanationLength)
	}
	return text, nil
}

func statusError(resp *http.Response, payload []byte) error {
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{
			err:   fmt.Errorf("%w: %s", ports.ErrRateLimited, msg),
			after: retryAfter(resp.Header),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ports.ErrServiceUnavailable, msg)
	}
	// 4xx other than 429 means the request itself is wrong; the breaker
	// should not trip on it.
	return fmt.Errorf("%w: %s", ports.ErrInvalidResponse, msg)
}

type rateLimitError struct {
	err   error
	after *time.Duration
}

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) *time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

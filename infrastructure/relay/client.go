// Package relay forwards plain-text messages to a chat-ops webhook and
// exposes the one-endpoint HTTP handler that accepts them.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// ErrCircuitOpen is returned while the webhook breaker is open.
var ErrCircuitOpen = errors.New("webhook circuit breaker open")

// UpstreamError reports a non-2xx answer from the webhook.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	// WebhookURL is the chat-ops endpoint. Empty leaves the relay
	// unconfigured.
	WebhookURL string
	Timeout    time.Duration
}

// Client posts text messages to a webhook.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ ports.Notifier = (*Client)(nil)

type payload struct {
	MsgType string  `json:"msg_type"`
	Content content `json:"content"`
}

type content struct {
	Text string `json:"text"`
}

// NewClient returns a client for cfg.WebhookURL.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url:  cfg.WebhookURL,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "relay-webhook",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// Only transport failures and 5xx answers count against the
			// webhook.
			IsSuccessful: func(err error) bool {
				var up *UpstreamError
				if errors.As(err, &up) {
					return up.Status < 500
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("relay circuit breaker state transition")
			},
		}),
	}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool { return c.url != "" }

// Send implements ports.Notifier.
func (c *Client) Send(ctx context.Context, text string) error {
	if !c.Configured() {
		return ports.ErrNotifierUnconfigured
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, text string) error {
	body, err := json.Marshal(payload{MsgType: "text", Content: content{Text: text}})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ahrav/treadpick/internal/logging"
)

// ErrCircuitOpen is returned without calling the provider while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TimeoutMiddleware bounds each request with its own deadline.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next.DoRequest(ctx, prompt, opts)
		}}
	}
}

// RetryPolicy configures RetryMiddleware.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// RetryMiddleware re-sends requests that failed with a retryable error,
// backing off exponentially with jitter. An open circuit or a finished
// context stops retrying immediately.
func RetryMiddleware(p RetryPolicy) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			var lastErr error
			for attempt := 0; ; attempt++ {
				resp, in, out, err := next.DoRequest(ctx, prompt, opts)
				if err == nil {
					return resp, in, out, nil
				}
				lastErr = err
				if attempt >= p.MaxRetries || !isRetryable(err) || ctx.Err() != nil {
					break
				}

				delay := p.backoff(attempt)
				logging.Ctx(ctx).Debug().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying llm request")
				select {
				case <-ctx.Done():
					return "", 0, 0, ctx.Err()
				case <-time.After(delay):
				}
			}
			if p.MaxRetries == 0 {
				return "", 0, 0, lastErr
			}
			return "", 0, 0, fmt.Errorf("llm request failed after retries: %w", lastErr)
		}}
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << min(attempt, 20)
	// Jitter in [0.75d, 1.25d).
	d = time.Duration(float64(d) * (0.75 + rand.Float64()/2))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RateLimitMiddleware waits for a token from a shared limiter before each
// request. The limiter is shared by every CoreLLM the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", 0, 0, fmt.Errorf("rate limit wait: %w", err)
			}
			return next.DoRequest(ctx, prompt, opts)
		}}
	}
}

// BreakerSettings configures CircuitBreakerMiddleware.
type BreakerSettings struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// circuit.
	MaxFailures uint32

	// Cooldown is how long the circuit stays open before a trial request.
	Cooldown time.Duration
}

type llmResult struct {
	text    string
	in, out int
}

// CircuitBreakerMiddleware stops calling the provider after MaxFailures
// consecutive failures and rejects requests with ErrCircuitOpen until
// Cooldown elapses. Client-side errors such as bad requests do not count
// as failures.
func CircuitBreakerMiddleware(s BreakerSettings) Middleware {
	if s.Name == "" {
		s.Name = "llm"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker[llmResult](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("llm circuit breaker state changed")
		},
	})

	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			res, err := cb.Execute(func() (llmResult, error) {
				text, in, out, err := next.DoRequest(ctx, prompt, opts)
				return llmResult{text: text, in: in, out: out}, err
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return "", 0, 0, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
			}
			return res.text, res.in, res.out, err
		}}
	}
}

// wrapped is the CoreLLM produced by the function-style middleware above.
type wrapped struct {
	next CoreLLM
	do   func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error)
}

func (w *wrapped) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	return w.do(ctx, prompt, opts)
}

func (w *wrapped) GetModel() string { return w.next.GetModel() }

func (w *wrapped) SetModel(m string) { w.next.SetModel(m) }

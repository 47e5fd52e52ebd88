package ports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSourceError covers message formatting and sentinel matching.
func TestSourceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSourceError("postgres", cause)

	assert.Equal(t, "source error: source=postgres, err=connection refused", err.Error())
	assert.True(t, errors.Is(err, cause), "Should unwrap to the cause")
	assert.True(t, errors.Is(err, ErrSourceUnavailable), "Should match ErrSourceUnavailable")
	assert.False(t, errors.Is(err, ErrFeedbackRejected))
}

// TestExplainError covers message formatting and retryable logic.
func TestExplainError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewExplainError("llm", "t-1", ErrInvalidResponse)

		assert.Equal(t, "explain error: provider=llm, tire=t-1, err=invalid response", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidResponse))
		assert.True(t, errors.Is(err, ErrExplanationUnavailable))
		assert.False(t, err.IsRetryable())
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 5 * time.Second
		err := NewExplainError("http", "t-2", ErrRateLimited)
		err.RetryAfter = &retryAfter

		assert.Contains(t, err.Error(), "retry_after=5s")
		assert.True(t, err.IsRetryable())
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewExplainError("llm", "t", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}
	})
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("relay.webhook_url", ErrNotifierUnconfigured)

	assert.Equal(t, "config error: key=relay.webhook_url, err=webhook url not configured", err.Error())
	assert.True(t, errors.Is(err, ErrNotifierUnconfigured))
}

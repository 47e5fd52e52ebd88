package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrSourceUnavailable indicates that the candidate dataset could not be
	// fetched.
	ErrSourceUnavailable = errors.New("candidate source unavailable")

	// ErrExplanationUnavailable indicates that no explanation could be
	// produced and the caller should use the fallback.
	ErrExplanationUnavailable = errors.New("explanation unavailable")

	// ErrFeedbackRejected indicates that the feedback sink refused or failed
	// to store a record.
	ErrFeedbackRejected = errors.New("feedback rejected")

	// ErrNotifierUnconfigured indicates that no webhook URL is configured.
	ErrNotifierUnconfigured = errors.New("webhook url not configured")

	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")
)

// SourceError wraps a candidate fetch failure with the backend that failed.
type SourceError struct {
	// Source names the backend (postgres, sqlite3, file).
	Source string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: source=%s, err=%v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// Is reports a match for ErrSourceUnavailable so callers need not know the
// backend-specific cause.
func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// NewSourceError creates a new SourceError.
func NewSourceError(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}

// ExplainError represents a failed explanation lookup for one tire.
type ExplainError struct {
	// TireID is the candidate the lookup was for.
	TireID string

	// Provider names the explainer implementation.
	Provider string

	// Err is the underlying error.
	Err error

	// RetryAfter is set when the provider asked the caller to back off.
	RetryAfter *time.Duration
}

// Error implements the error interface for ExplainError.
func (e *ExplainError) Error() string {
	msg := fmt.Sprintf("explain error: provider=%s, tire=%s, err=%v", e.Provider, e.TireID, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExplainError) Unwrap() error { return e.Err }

// Is matches ErrExplanationUnavailable for every explain failure.
func (e *ExplainError) Is(target error) bool { return target == ErrExplanationUnavailable }

// IsRetryable returns true if the error is temporary.
func (e *ExplainError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewExplainError creates a new ExplainError.
func NewExplainError(provider, tireID string, err error) *ExplainError {
	return &ExplainError{Provider: provider, TireID: tireID, Err: err}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

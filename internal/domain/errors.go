package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while ranking candidates or recording
// feedback.
var (
	// ErrInvalidPreference indicates that a preference value is not one of
	// the supported enumeration members.
	ErrInvalidPreference = errors.New("invalid preference")

	// ErrEmptyValue indicates that a required value is empty or nil.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidFeedback indicates that a feedback record failed validation.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// PreferenceError describes a preference value that could not be parsed.
// Suggestion holds the closest supported value when one is near enough to be
// a likely typo.
type PreferenceError struct {
	// Field names the preference being parsed (wet_pref or width_pref).
	Field string

	// Value is the raw input that failed to parse.
	Value string

	// Suggestion is the closest supported value, or empty.
	Suggestion string
}

// Error implements the error interface for PreferenceError.
func (e *PreferenceError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid %s %q (did you mean %q?)", e.Field, e.Value, e.Suggestion)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// Unwrap lets callers match PreferenceError with errors.Is(err, ErrInvalidPreference).
func (e *PreferenceError) Unwrap() error { return ErrInvalidPreference }

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

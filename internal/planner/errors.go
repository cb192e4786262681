package planner

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration problem detected before any row
// is processed. Planning never starts with an invalid configuration.
//
// Configuration errors include:
//   - Unknown merge or delete mode
//   - Missing era metadata
//   - Unsupported interval subtype
//   - Ephemeral columns overlapping synchronized temporal columns
//   - No identity columns and no lookup keys
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Field names the offending configuration field.
	Field string

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeInvalidMode indicates an unknown merge mode.
	ErrCodeInvalidMode ConfigErrorCode = "INVALID_MODE"

	// ErrCodeInvalidDeleteMode indicates an unknown delete mode.
	ErrCodeInvalidDeleteMode ConfigErrorCode = "INVALID_DELETE_MODE"

	// ErrCodeMissingEra indicates the era or its bound columns are not configured.
	ErrCodeMissingEra ConfigErrorCode = "MISSING_ERA"

	// ErrCodeUnsupportedSubtype indicates a subtype outside the numeric and date/time categories.
	ErrCodeUnsupportedSubtype ConfigErrorCode = "UNSUPPORTED_SUBTYPE"

	// ErrCodeEphemeralOverlap indicates an ephemeral column is also a synchronized temporal column.
	ErrCodeEphemeralOverlap ConfigErrorCode = "EPHEMERAL_OVERLAP"

	// ErrCodeUndefinedStrategy indicates neither identity columns nor lookup keys are configured.
	ErrCodeUndefinedStrategy ConfigErrorCode = "UNDEFINED_STRATEGY"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newConfigError(code ConfigErrorCode, field, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigError, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// ErrInternalInvariant marks a state the pipeline should never reach.
// It aborts planning instead of producing a plan silently.
var ErrInternalInvariant = errors.New("internal invariant violated")

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternalInvariant, fmt.Sprintf(format, args...))
}

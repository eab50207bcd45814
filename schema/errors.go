package schema

import (
	"errors"
	"fmt"
)

// Record validation failures. Each is wrapped in a ValidationError naming the field.
var (
	ErrMissingCommitHash      = errors.New("commit hash is required")
	ErrInvalidCommitTimestamp = errors.New("commit timestamp must be RFC 3339")
	ErrInvalidRunDate         = errors.New("run date must be a positive epoch milliseconds value")
	ErrUnknownTool            = errors.New("unknown tool")
	ErrNoMeasurements         = errors.New("at least one measurement is required")
	ErrEmptyMeasurementName   = errors.New("measurement name is required")
	ErrDuplicateMeasurement   = errors.New("measurement name is not unique within the run")
	ErrNonNumericValue        = errors.New("measurement value is not numeric")
	ErrNonFiniteValue         = errors.New("measurement value is not finite")
	ErrNegativeValue          = errors.New("measurement value is negative")
	ErrMalformedRecord        = errors.New("record is not decodable")
)

// Store and evaluation failures.
var (
	ErrDuplicateCommit  = errors.New("commit already recorded for suite")
	ErrCommitNotFound   = errors.New("commit not recorded for suite")
	ErrConcurrentWrite  = errors.New("concurrent write conflict")
	ErrStoreTimeout     = errors.New("store operation timed out")
	ErrCorruptStore     = errors.New("history document is corrupt")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptySuite       = errors.New("suite identifier is required")
)

// ValidationError reports one violated field of a Record.
type ValidationError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StoreIOError reports a failed load or write against the history backend.
// These are retryable from the caller's point of view.
type StoreIOError struct {
	Op    string
	Suite string
	Err   error
}

// Error implements the error interface.
func (e *StoreIOError) Error() string {
	if e.Suite == "" {
		return fmt.Sprintf("history %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("history %s for suite %q: %v", e.Op, e.Suite, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err carries at least one ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreIOError reports whether err came from the history backend.
func IsStoreIOError(err error) bool {
	var se *StoreIOError
	return errors.As(err, &se)
}

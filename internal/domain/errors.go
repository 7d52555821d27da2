package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a content item does not exist or belongs
	// to a different user.
	ErrNotFound = errors.New("content not found")

	// ErrAlreadyProcessing is returned when a reprocess request targets an
	// item with an in-flight extraction.
	ErrAlreadyProcessing = errors.New("content is already being processed")

	// ErrInvalidKind is returned when an operation does not apply to the
	// item's kind, e.g. reprocessing a note.
	ErrInvalidKind = errors.New("operation not supported for this content kind")
)

// ValidationError describes a rejected input. It is always surfaced
// synchronously to the caller and never enters the ingestion queue.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExtractionError describes a failed extraction attempt. Transient failures
// (rate limits, timeouts) are retried by the worker; permanent failures
// terminate the item in StatusFailed without retry.
type ExtractionError struct {
	Transient bool
	Err       error
}

func (e *ExtractionError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient extraction failure: %v", e.Err)
	}
	return fmt.Sprintf("permanent extraction failure: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable extraction failure.
func NewTransientError(err error) *ExtractionError {
	return &ExtractionError{Transient: true, Err: err}
}

// NewPermanentError wraps err as a terminal extraction failure.
func NewPermanentError(err error) *ExtractionError {
	return &ExtractionError{Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable extraction failure.
func IsTransient(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Transient
}

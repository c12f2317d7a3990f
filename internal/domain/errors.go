package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when write input is missing
// a required field or a value is out of range.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInput is returned when request parameters are structurally invalid
// (e.g. a non-positive page number). Handlers should map this to HTTP 400.
var ErrInput = errors.New("invalid input")

// ErrReference is returned when a write names a rider or driver that does not
// resolve to an existing user. Handlers should map this to HTTP 422.
var ErrReference = errors.New("unresolved reference")

// ErrUpstreamTimeout is returned when the data store did not answer in time.
// It is retryable; handlers should map it to HTTP 503.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// FieldError ties one of the sentinel errors above to the request field that
// caused it. errors.Is(err, Kind) holds for any wrapped *FieldError.
type FieldError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Kind }

// InputError builds an ErrInput FieldError.
func InputError(field, reason string) error {
	return &FieldError{Kind: ErrInput, Field: field, Reason: reason}
}

// ValidationError builds an ErrValidation FieldError.
func ValidationError(field, reason string) error {
	return &FieldError{Kind: ErrValidation, Field: field, Reason: reason}
}

// ReferenceError builds an ErrReference FieldError.
func ReferenceError(field, reason string) error {
	return &FieldError{Kind: ErrReference, Field: field, Reason: reason}
}

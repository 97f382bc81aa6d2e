package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized: missing or invalid anti-forgery token. Rejected
	// before any mutation.
	ErrUnauthorized = errors.New("security check failed")

	// ErrNotFound: the order identifier does not resolve.
	ErrNotFound = errors.New("order not found")

	// ErrRemoteDelivery: the outbound call to the payment backend failed.
	// Logged and non-fatal; the order flow continues.
	ErrRemoteDelivery = errors.New("proxy delivery failed")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

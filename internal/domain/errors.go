package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Rejection kinds sent back to a client so it can tell apart
// re-authenticate, retry and fix-your-input.
const (
	RejectInvalid         = "invalid"
	RejectUnauthenticated = "unauthenticated"
	RejectStorage         = "storage"
	RejectInternal        = "internal"
)

// ValidationError reports client input the core refuses to act on.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failure of the durable store.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuthenticationError means a presented credential was rejected.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RejectionKind maps an error to the kind reported to the sending client.
func RejectionKind(err error) string {
	var (
		ve *ValidationError
		pe *PersistenceError
		ae *AuthenticationError
	)
	switch {
	case errors.As(err, &ve):
		return RejectInvalid
	case errors.Is(err, ErrUnauthenticated), errors.As(err, &ae):
		return RejectUnauthenticated
	case errors.As(err, &pe):
		return RejectStorage
	default:
		return RejectInternal
	}
}

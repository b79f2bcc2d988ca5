package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport failure")
)

// ValidationError blocks a mutation before anything is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a mutation against an id that is not present.
type NotFoundError struct {
	Kind EntityKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind.Label(), e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransportError wraps a failed call to the remote store: the request never
// completed, or it completed with a non-success status.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

package domain

import (
	"errors"
	"fmt"
)

// ErrNamespaceMismatch is returned when a definition or snapshot is handed
// to a namespace it does not belong to.
var ErrNamespaceMismatch = errors.New("namespace mismatch")

// -----------------------------
// NotFoundError
// -----------------------------

type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// -----------------------------
// ValidationError
// -----------------------------

type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

func NewValidationErrorWithCause(message string, cause error) *ValidationError {
	return &ValidationError{
		Message: message,
		Cause:   cause,
	}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

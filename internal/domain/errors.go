package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap exactly one of these so callers can
// classify with errors.Is and transports can map them to stable responses.
var (
	// ErrNotFound means the referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the actor is not allowed to act on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the resource is not in the state the operation requires.
	ErrConflict = errors.New("conflict")
	// ErrInvalid means the input itself is malformed.
	ErrInvalid = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with the resource name.
func NotFound(resource string) error {
	return fmt.Errorf("%s: %w", resource, ErrNotFound)
}

// Forbidden wraps ErrForbidden with the denied action.
func Forbidden(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}

// Conflict wraps ErrConflict with the state violation.
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// Invalid wraps ErrInvalid with the validation failure.
func Invalid(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalid)
}

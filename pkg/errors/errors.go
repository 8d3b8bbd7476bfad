package relay_errors

import (
	"errors"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyExists      = errors.New("already exists")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrPartialState       = errors.New("operation partially applied")
)

// Error pairs a user-facing message with one of the sentinels above so
// callers can still branch with errors.Is.
type Error struct {
	Sentinel error
	Message  string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Sentinel }

// WithMessage attaches a user-facing message to a sentinel.
func WithMessage(sentinel error, message string) error {
	return &Error{Sentinel: sentinel, Message: message}
}

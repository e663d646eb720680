// Package apperr defines the error kinds surfaced by portal services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidMFACode     = errors.New("invalid mfa code")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Error is a kinded error carrying a message fit for display.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match the kind sentinel.
func (e *Error) Is(target error) bool { return e.Kind == target }

// Unwrap exposes the kind sentinel.
func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an identifier lookup miss.
func NotFound(format string, args ...any) *Error { return newf(ErrNotFound, format, args...) }

// InvalidInput reports a missing or malformed field.
func InvalidInput(format string, args ...any) *Error { return newf(ErrInvalidInput, format, args...) }

// InvalidCredentials reports a failed password check.
func InvalidCredentials(format string, args ...any) *Error {
	return newf(ErrInvalidCredentials, format, args...)
}

// InvalidMFACode reports a rejected second factor.
func InvalidMFACode(format string, args ...any) *Error {
	return newf(ErrInvalidMFACode, format, args...)
}

// Unauthorized reports a missing or expired session.
func Unauthorized(format string, args ...any) *Error { return newf(ErrUnauthorized, format, args...) }

// Message returns the display message of err, falling back to a generic text
// for errors outside the taxonomy.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "operation failed"
}

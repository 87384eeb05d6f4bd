// Package apperr defines the error taxonomy shared by every authenticated
// call in the dashboard: missing/invalid credentials, insufficient role,
// retryable transport failures, and malformed responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeTransient       = "transient"
	CodeUnexpected      = "unexpected"
	CodeInternal        = "internal"
)

// Error represents a structured application error.
type Error struct {
	Code    string
	Status  int
	Message string
	Cause   error
}

// New creates a new Error.
func New(code string, status int, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// Unauthenticated marks a missing or invalid credential. Consumers react by
// redirecting to login, never by showing an error dialog.
func Unauthenticated(message string, cause error) *Error {
	return New(CodeUnauthenticated, http.StatusUnauthorized, message, cause)
}

// Forbidden marks a valid principal that lacks the required capability.
// Distinct from Unauthenticated; must never trigger a logout.
func Forbidden(message string, cause error) *Error {
	return New(CodeForbidden, http.StatusForbidden, message, cause)
}

// Transient marks a network or server failure that is safe to retry and must
// leave session state untouched.
func Transient(message string, cause error) *Error {
	return New(CodeTransient, http.StatusServiceUnavailable, message, cause)
}

// Unexpected marks a malformed response; session state is left untouched.
func Unexpected(message string, cause error) *Error {
	return New(CodeUnexpected, http.StatusInternalServerError, message, cause)
}

// Internal marks a programming or configuration error.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message, cause)
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// As extracts an *Error if present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	appErr := As(err)
	return appErr != nil && appErr.Code == code
}

// IsUnauthenticated reports whether err is an Unauthenticated error.
func IsUnauthenticated(err error) bool {
	return IsCode(err, CodeUnauthenticated)
}

// IsForbidden reports whether err is a Forbidden error.
func IsForbidden(err error) bool {
	return IsCode(err, CodeForbidden)
}

// IsTransient reports whether err is a Transient error.
func IsTransient(err error) bool {
	return IsCode(err, CodeTransient)
}

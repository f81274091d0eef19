// Package apperr defines the error taxonomy shared by the dispatcher, the
// store gateway and the HTTP layer. Every error carries a stable code, a
// user-facing message and optional structured details.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one error kind.
type Code string

const (
	CodeValidation     Code = "validation"
	CodeAuthentication Code = "authentication"
	CodeAuthorization  Code = "authorization"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeGone           Code = "gone"
	CodeRateLimited    Code = "rate_limited"
	CodeTimeout        Code = "timeout"
	CodeUnavailable    Code = "unavailable"
	CodeInternal       Code = "internal"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error is the application error type.
type Error struct {
	Code    Code         `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E creates an error with the given code and message.
func E(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a coded error.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation builds a validation error from field errors.
func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Code: CodeValidation, Message: msg, Fields: fields}
}

// CodeOf extracts the code from err, defaulting to internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool { return CodeOf(err) == code }

// HTTPStatus maps a code to its HTTP status per the external contract.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeGone:
		return http.StatusGone
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

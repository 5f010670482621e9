// Package errors provides structured error types for pypifeed.
//
// Every failure surfaced by the PyPI client falls into one of a few kinds,
// identified by a machine-readable [Code]:
//   - TRANSPORT_ERROR: the GET failed (network error or non-2xx status)
//   - NOT_FOUND: the index answered 404 (also a transport failure)
//   - PARSE_ERROR: the body was not the expected XML or JSON shape
//   - TOO_LARGE: the body exceeded an opted-in size cap
//
// # Usage
//
//	err := errors.Wrap(errors.ErrCodeParse, cause, "decode feed %s", url)
//	if errors.IsTransport(err) {
//	    // network or HTTP status failure
//	}
//
// Causes are preserved, so the standard library's errors.Is and errors.As
// see through an *Error (for example to detect context.Canceled).
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"

	// Transport errors
	ErrCodeTransport Code = "TRANSPORT_ERROR"
	ErrCodeNotFound  Code = "NOT_FOUND"

	// Payload errors
	ErrCodeParse    Code = "PARSE_ERROR"
	ErrCodeTooLarge Code = "TOO_LARGE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTransport reports whether err is a transport-level failure.
// A 404 is reported as NOT_FOUND but still counts as transport.
func IsTransport(err error) bool {
	switch GetCode(err) {
	case ErrCodeTransport, ErrCodeNotFound:
		return true
	}
	return false
}

// IsParse reports whether err is a malformed-payload failure.
func IsParse(err error) bool {
	return Is(err, ErrCodeParse)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

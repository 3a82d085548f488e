// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling for the Helmsman runtime.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode classifies Helmsman errors for logging and recovery decisions.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfiguration indicates missing or invalid credentials or settings.
	// Recoverable by reconfiguration, never fatal to the process.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeNotConfigured indicates a provider is known but not usable yet.
	CodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// CodeNotFound indicates a provider or resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnknownOperation indicates an operation name that the provider
	// does not expose.
	CodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// CodeInvalidParameters indicates an invocation failed parameter
	// validation. The error carries every violation found.
	CodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"

	// CodeProvider indicates a downstream third-party failure.
	CodeProvider ErrorCode = "PROVIDER_ERROR"
)

// Error is a typed error carrying the failure kind and, for parameter
// validation failures, the full list of violations.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Violations  []string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case len(e.Violations) > 0:
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, strings.Join(e.Violations, "; "))
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code        string   `json:"code"`
		Message     string   `json:"message"`
		Err         string   `json:"error,omitempty"`
		Violations  []string `json:"violations,omitempty"`
		Recoverable bool     `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         errString(e.Err),
		Violations:  e.Violations,
		Recoverable: e.Recoverable,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
	}
}

// Newf creates a new Error with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithViolations attaches the full list of parameter violations.
// Returns the error for method chaining.
func (e *Error) WithViolations(violations ...string) *Error {
	e.Violations = append(e.Violations, violations...)
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// As attempts to convert an error to a *Error.
// Returns the error unchanged if it already is one, or wraps it as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*Error); ok {
		return he
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if he, ok := err.(*Error); ok {
		return he.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	he, ok := err.(*Error)
	return ok && he.Code == code
}

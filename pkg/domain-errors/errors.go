// Package dErrors provides coded domain errors shared by every service.
// Each error carries a machine-readable Code, a human-readable Message, and
// an optional LoginInfo payload surfaced to API clients alongside the code.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Transports map codes onto their own
// status vocabulary; services branch on codes with Is/HasCode, never on
// message text.
type Code string

const (
	CodeValidation           Code = "validation"
	CodeConflict             Code = "conflict"
	CodeNotFound             Code = "not_found"
	CodeUnauthorized         Code = "unauthorized"
	CodeInvalidToken         Code = "invalid_token"
	CodeAuthenticationFailed Code = "authentication_failed"
	CodeUnknownService       Code = "unknown_service"
	CodeNoPassword           Code = "no_password"
	CodeBadRequest           Code = "bad_request"
	CodeInternal             Code = "internal"
)

// Error is the structured domain error. LoginInfo carries optional context
// for login flows (which identity field was attempted, provider name) and is
// serialized verbatim into transport error envelopes.
type Error struct {
	Code      Code
	Message   string
	LoginInfo map[string]string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error while keeping the
// cause reachable through errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithLoginInfo returns a copy of the error annotated with login context.
func (e *Error) WithLoginInfo(info map[string]string) *Error {
	clone := *e
	clone.LoginInfo = info
	return &clone
}

// HasCode reports whether err is a domain error carrying code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// Package cortexerr defines the stable error taxonomy shared across every
// Cortex subsystem, per the core error handling design: every surfaced
// error carries a stable code, a human message, and an optional remediation
// hint.
package cortexerr

import (
	"errors"
	"fmt"
)

// Code identifies a stable error category. Codes are part of the external
// contract (service responses reference them by name) and must never be
// renumbered or renamed once shipped.
type Code string

// Error codes surfaced across the acquisition, map, navigation, and service
// layers.
const (
	CodeDNS              Code = "DNS"
	CodeTLS              Code = "TLS"
	CodeTimeout          Code = "Timeout"
	CodeForbidden        Code = "Forbidden"
	CodeH2Protocol       Code = "H2Protocol"
	CodeTooManyRedirects Code = "TooManyRedirects"
	CodeBody             Code = "Body"

	CodeUnknownDomain    Code = "UnknownDomain"
	CodeBadQuery         Code = "BadQuery"
	CodeNodeNotFound     Code = "NodeNotFound"
	CodeDimensionMismatch Code = "DimensionMismatch"
	CodeNoPath           Code = "NoPath"
	CodeEmptyQuery       Code = "EmptyQuery"

	CodeCorruptMap  Code = "CorruptMap"
	CodeQueueFull   Code = "QueueFull"
	CodeInternal    Code = "Internal"
	CodeInvalidArg  Code = "InvalidArgument"
	CodeUnknownMethod Code = "UnknownMethod"
)

// Error is the concrete error type returned across Cortex package
// boundaries. It satisfies the standard error interface plus errors.Is via
// Code comparison, so callers can write errors.Is(err, cortexerr.New(cortexerr.CodeNoPath, "")).
type Error struct {
	Code        Code
	Message     string
	Remediation string
	Err         error // wrapped cause, optional
}

// New builds an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithRemediation attaches a remediation hint and returns the receiver for
// chaining at the construction site.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Code, so callers can
// test error identity with errors.Is(err, &Error{Code: CodeNoPath}) or the
// convenience Is* helpers below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, and
// CodeInternal otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether CodeOf(err) equals code: only the first *Error in
// err's chain is consulted.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

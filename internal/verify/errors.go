package verify

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers. Raw cause text goes to logs and
// the wrapped error chain, never into the code.
const (
	CodeAdapterUnavailable       = "ADAPTER_UNAVAILABLE"
	CodeDriverNotFound           = "DRIVER_NOT_FOUND"
	CodeInvalidCommand           = "INVALID_COMMAND"
	CodePartialWrite             = "PARTIAL_WRITE"
	CodeAggregationInconsistency = "AGGREGATION_INCONSISTENCY"
	CodeInternal                 = "INTERNAL"
)

// Error is a coded error with a human-readable message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a coded error without a cause.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds a coded error around a cause.
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func invalidCommand(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidCommand, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the stable code from an error chain, defaulting to
// INTERNAL for uncoded errors.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from an error chain.
func MessageOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return "internal error"
}

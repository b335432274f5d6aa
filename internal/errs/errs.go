package errs

import (
	"errors"
	"fmt"
)

// Code classifies pipeline errors so callers can decide between
// per-source exclusion, fallback, and cycle abort.
type Code string

const (
	CodeSourceUnavailable      Code = "SOURCE_UNAVAILABLE"
	CodeMalformedResponse      Code = "MALFORMED_RESPONSE"
	CodeInsufficientSources    Code = "INSUFFICIENT_SOURCES"
	CodeInsufficientData       Code = "INSUFFICIENT_DATA"
	CodePrimarySourceExhausted Code = "PRIMARY_SOURCE_EXHAUSTED"
	CodeSubmissionDecision     Code = "SUBMISSION_DECISION_ERROR"
	CodeChainPublish           Code = "CHAIN_PUBLISH_FAILURE"
	CodeStorage                Code = "STORAGE_ERROR"
)

// ErrNoData is returned by read paths when the pipeline has not yet
// produced a value. Consumers must treat it as "no data", never as zero.
var ErrNoData = errors.New("no data available")

// Error is a classified pipeline error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// IsNoData reports whether err means "no stored value yet".
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// CodeOf extracts the classification code, or "" for plain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

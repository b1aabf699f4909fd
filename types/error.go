package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Input error codes. These are handled locally with best-effort degradation
// and are never fatal to a request.
const (
	ErrEmptyQuery   ErrorCode = "EMPTY_QUERY"
	ErrMalformedID  ErrorCode = "MALFORMED_ID"
	ErrInvalidLimit ErrorCode = "INVALID_LIMIT"
)

// Upstream error codes. Recoverable per stage: routing falls back to
// vector-only scoring, synthesis is omitted, expansion degrades to seeds.
const (
	ErrGraphUnavailable     ErrorCode = "GRAPH_UNAVAILABLE"
	ErrEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	ErrLLMUnavailable       ErrorCode = "LLM_UNAVAILABLE"
	ErrUpstreamTimeout      ErrorCode = "UPSTREAM_TIMEOUT"
	ErrRateLimited          ErrorCode = "RATE_LIMITED"
	ErrUnauthorized         ErrorCode = "UNAUTHORIZED"
)

// Data-integrity error codes. Fatal at initialization: the engine refuses to
// serve routing decisions rather than return silently wrong rankings.
const (
	ErrDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrZeroCentroid      ErrorCode = "ZERO_CENTROID"
	ErrEmptySnapshot     ErrorCode = "EMPTY_SNAPSHOT"
	ErrInternal          ErrorCode = "INTERNAL"
)

// Error is a structured error carrying a code, a human-readable message,
// the pipeline stage that produced it, and an optional wrapped cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Stage     string    `json:"stage,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithStage records the pipeline stage that produced the error.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsFatal reports whether the code belongs to the data-integrity class that
// must stop initialization.
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrDimensionMismatch, ErrZeroCentroid, ErrEmptySnapshot:
		return true
	}
	return false
}

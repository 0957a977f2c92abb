package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes for failures that carry no HTTP status.
const (
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeConnectionReset   = "CONNECTION_RESET"
	ErrCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeInvalidModel      = "INVALID_MODEL"
	ErrCodeContentPolicy     = "CONTENT_POLICY"
	ErrCodeEmptyResponse     = "EMPTY_RESPONSE"
)

// Error is a classified provider failure.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Provider   string
	Err        error
}

func NewError(statusCode int, message, provider string, err error) *Error {
	return &Error{StatusCode: statusCode, Message: message, Provider: provider, Err: err}
}

func NewErrorWithCode(code, message, provider string, err error) *Error {
	return &Error{Code: code, Message: message, Provider: provider, Err: err}
}

func (e *Error) Error() string {
	label := e.Code
	if e.StatusCode != 0 {
		label = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if label == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, label, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the call may succeed.
func (e *Error) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	switch e.Code {
	case ErrCodeTimeout, ErrCodeConnectionReset, ErrCodeConnectionRefused, ErrCodeEmptyResponse:
		return true
	}
	return false
}

// IsRetryable classifies err. Caller cancellation is never retryable;
// unclassified errors are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}
	return true
}

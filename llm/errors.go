package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for classifying provider failures.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// ClassifyStatus wraps err according to an HTTP status code reported by a
// provider API or SDK. Rate limits and server errors are transient; auth and
// request errors are fatal.
func ClassifyStatus(statusCode int, err error) error {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return NewTransientError(err)
	case statusCode == 0:
		// No status means the request never completed.
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

// classifyHTTPError builds a classified error from a raw HTTP response.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	return ClassifyStatus(statusCode, fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr))
}

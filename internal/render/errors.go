package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is the single error shape for every render, upload and download
// failure. StatusCode is zero when no response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("render api: HTTP %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("render api: HTTP %d", e.StatusCode)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("render api: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("render api: %v", e.Err)
	default:
		return "render api: " + e.Message
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable is true for 5xx, 429 and transport failures. Client errors
// and a canceled context are permanent.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	if e.Err == nil || errors.Is(e.Err, context.Canceled) {
		return false
	}
	return true
}

// IsRetryable reports whether err is an *APIError worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}

func transportError(op string, err error) *APIError {
	return &APIError{Message: op, Err: err}
}

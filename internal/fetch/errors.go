package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// FetchError is returned when a fetch could not be completed. It carries the
// last underlying cause and the number of attempts made.
type FetchError struct {
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an attempt error is transient. Rate limiting,
// server errors, network disruption and partial transfers are retried;
// client errors and context cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// Per-attempt timeouts count against the retry budget rather than
	// aborting the whole fetch.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// url.Error from http.Client implements net.Error, so this covers
	// connection refused, reset, DNS failure and client-side timeouts.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

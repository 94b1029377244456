package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RateLimitError indicates the server rate limited the request.
// It includes the status code and optional Retry-After duration.
type RateLimitError struct {
	// StatusCode is the HTTP status code (429 or 503)
	StatusCode int
	// RetryAfter indicates how long to wait before retrying
	RetryAfter time.Duration
	// Body is the response body, kept for diagnostics
	Body []byte
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// Transient reports that rate limiting is always worth retrying.
func (e *RateLimitError) Transient() bool { return true }

// HTTPError indicates a non-2xx HTTP response.
type HTTPError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is the response body
	Body []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	if len(e.Body) > 0 {
		body := e.Body
		if len(body) > 256 {
			body = body[:256]
		}
		return fmt.Sprintf("http error: status %d: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// Transient reports whether the status code is worth retrying.
func (e *HTTPError) Transient() bool {
	return ShouldRetry(e.StatusCode)
}

// ErrRequestFailed indicates the request itself failed (network error).
var ErrRequestFailed = errors.New("http request failed")

// IsServerError checks if status code is a server error (5xx).
func IsServerError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}

// ShouldRetry determines if a request should be retried based on status code.
func ShouldRetry(statusCode int) bool {
	if IsServerError(statusCode) {
		return true
	}

	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

package feed

import (
	"errors"
	"fmt"
	"time"
)

// NetworkError is a transient failure talking to the feed: a transport
// error or a retryable status (5xx, 408).
type NetworkError struct {
	URL        string
	StatusCode int // 0 for transport errors
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: GET %s: HTTP %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("feed: GET %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitedError reports that the feed refused the request because the
// rate limit is exhausted. Callers should not retry before ResetAt.
type RateLimitedError struct {
	StatusCode int
	ResetAt    time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("feed: rate limited (HTTP %d) until %s", e.StatusCode, e.ResetAt.UTC().Format(time.RFC3339))
}

// APIError is a non-retryable, non-2xx response.
type APIError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("feed: GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err wraps a *RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsNotFound reports whether err is a 404 APIError.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

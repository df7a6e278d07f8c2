package feed

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// defaultRateLimitWindow is used as the reset time when a rate-limit
// response carries neither Retry-After nor X-RateLimit-Reset.
const defaultRateLimitWindow = time.Minute

// rateLimitTracker keeps the snapshot from the most recent response that
// carried rate-limit headers.
type rateLimitTracker struct {
	mu   sync.Mutex
	last *RateLimit
}

// update records the counters in header, if any. A response without
// X-RateLimit-Remaining leaves the previous snapshot in place.
func (t *rateLimitTracker) update(header http.Header) {
	rl, ok := parseRateLimit(header)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &rl
}

func (t *rateLimitTracker) snapshot() *RateLimit {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	cp := *t.last
	return &cp
}

func parseRateLimit(header http.Header) (RateLimit, bool) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return RateLimit{}, false
	}
	rl := RateLimit{Remaining: remaining}
	if limit, err := strconv.Atoi(header.Get("X-RateLimit-Limit")); err == nil {
		rl.Limit = limit
	}
	if used, err := strconv.Atoi(header.Get("X-RateLimit-Used")); err == nil {
		rl.Used = used
	}
	if reset, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.ResetAt = time.Unix(reset, 0)
	}
	return rl, true
}

// rateLimited classifies a response. It returns the time the caller may
// retry and true when the response is a rate-limit refusal: any 429, or
// a 403 that either reports zero remaining requests or carries
// Retry-After.
func rateLimited(status int, header http.Header, now time.Time) (time.Time, bool) {
	retryAfter := header.Get("Retry-After")
	switch status {
	case http.StatusTooManyRequests:
	case http.StatusForbidden:
		exhausted := header.Get("X-RateLimit-Remaining") == "0"
		if !exhausted && retryAfter == "" {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return now.Add(time.Duration(seconds) * time.Second), true
	}
	if reset, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if at := time.Unix(reset, 0); at.After(now) {
			return at, true
		}
	}
	return now.Add(defaultRateLimitWindow), true
}

package feed

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRateLimit(t *testing.T) {
	h := http.Header{}
	_, ok := parseRateLimit(h)
	assert.False(t, ok)

	h.Set("X-RateLimit-Remaining", "7")
	rl, ok := parseRateLimit(h)
	assert.True(t, ok)
	assert.Equal(t, 7, rl.Remaining)
	assert.True(t, rl.ResetAt.IsZero())
}

func TestRateLimitedClassification(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		status  int
		headers map[string]string
		limited bool
		resetAt time.Time
	}{
		{"ok", 200, nil, false, time.Time{}},
		{"server error", 503, map[string]string{"Retry-After": "5"}, false, time.Time{}},
		{"429 bare", 429, nil, true, now.Add(defaultRateLimitWindow)},
		{"429 retry-after", 429, map[string]string{"Retry-After": "30"}, true, now.Add(30 * time.Second)},
		{"403 exhausted", 403, map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1700000600"}, true, time.Unix(1_700_000_600, 0)},
		{"403 exhausted past reset", 403, map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1600000000"}, true, now.Add(defaultRateLimitWindow)},
		{"403 permission", 403, map[string]string{"X-RateLimit-Remaining": "10"}, false, time.Time{}},
		{"403 retry-after", 403, map[string]string{"Retry-After": "60"}, true, now.Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			at, limited := rateLimited(tt.status, h, now)
			assert.Equal(t, tt.limited, limited)
			assert.True(t, tt.resetAt.Equal(at), "reset %v, want %v", at, tt.resetAt)
		})
	}
}

func TestRateLimitTrackerKeepsLastSnapshot(t *testing.T) {
	var tr rateLimitTracker
	assert.Nil(t, tr.snapshot())

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "3")
	tr.update(h)
	tr.update(http.Header{})

	snap := tr.snapshot()
	if assert.NotNil(t, snap) {
		assert.Equal(t, 3, snap.Remaining)
		snap.Remaining = 99
		assert.Equal(t, 3, tr.snapshot().Remaining, "snapshot must be a copy")
	}
}

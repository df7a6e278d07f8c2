package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/shelf/internal/clock"
	"github.com/roach88/shelf/internal/syncerr"
	"github.com/roach88/shelf/internal/version"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the delay before the first retry. Each
	// later retry doubles it, up to MaxRetryDelay.
	DefaultRetryBaseDelay = time.Second

	// MaxRetryDelay caps a single backoff wait.
	MaxRetryDelay = 30 * time.Second

	// DefaultMaxDownloadBytes bounds a package download.
	DefaultMaxDownloadBytes = 512 << 20

	// maxReleaseBytes bounds the release JSON body.
	maxReleaseBytes = 8 << 20
)

// Config configures a Client. Only FeedURL is required.
type Config struct {
	// FeedURL is the URL of the latest-release JSON document.
	FeedURL string

	// AssetPattern selects the package asset within a release.
	AssetPattern string

	// Token, if set, is sent as a bearer token.
	Token string

	MaxRetries       int
	RetryBaseDelay   time.Duration
	MaxDownloadBytes int64

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Clock drives retry backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client fetches release metadata and package assets. It is safe for
// concurrent use.
type Client struct {
	feedURL          string
	assetPattern     string
	token            string
	maxRetries       int
	retryBaseDelay   time.Duration
	maxDownloadBytes int64

	httpClient *http.Client
	validator  validatorCache
	rateLimit  rateLimitTracker
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient builds a Client, filling defaults for unset fields.
func NewClient(cfg Config) (*Client, error) {
	if cfg.FeedURL == "" {
		return nil, errors.New("feed: FeedURL is required")
	}

	c := &Client{
		feedURL:          cfg.FeedURL,
		assetPattern:     cfg.AssetPattern,
		token:            cfg.Token,
		maxRetries:       cfg.MaxRetries,
		retryBaseDelay:   cfg.RetryBaseDelay,
		maxDownloadBytes: cfg.MaxDownloadBytes,
		httpClient:       cfg.HTTPClient,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = DefaultRetryBaseDelay
	}
	if c.maxDownloadBytes <= 0 {
		c.maxDownloadBytes = DefaultMaxDownloadBytes
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// FetchLatestRelease returns the latest release, or (nil, nil) when the
// feed answers 304 Not Modified to the stored ETag. forceRefresh skips
// the conditional header.
//
// Rate-limit refusals return *RateLimitedError immediately. Transient
// failures are retried; when retries run out the result is a
// *syncerr.DataSyncError (phase download) wrapping *NetworkError.
func (c *Client) FetchLatestRelease(ctx context.Context, forceRefresh bool) (*Release, error) {
	var lastErr *NetworkError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.Warn("retrying release fetch",
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-c.clock.After(delay):
			case <-ctx.Done():
				return nil, syncerr.New(syncerr.PhaseDownload, "fetch release", ctx.Err())
			}
		}

		release, retry, err := c.fetchOnce(ctx, forceRefresh)
		if err == nil {
			return release, nil
		}
		if !retry {
			return nil, err
		}
		var ne *NetworkError
		errors.As(err, &ne)
		ne.Attempts = attempt + 1
		lastErr = ne
	}

	return nil, syncerr.New(syncerr.PhaseDownload, "fetch release", lastErr)
}

// fetchOnce performs a single request. retry is true when err is a
// transient *NetworkError.
func (c *Client) fetchOnce(ctx context.Context, forceRefresh bool) (release *Release, retry bool, err error) {
	req, err := c.newRequest(ctx, c.feedURL, "application/vnd.github+json")
	if err != nil {
		return nil, false, syncerr.New(syncerr.PhaseDownload, "build request", err)
	}
	if !forceRefresh {
		if etag := c.validator.get(); etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, syncerr.New(syncerr.PhaseDownload, "fetch release", ctx.Err())
		}
		return nil, true, &NetworkError{URL: c.feedURL, Err: err}
	}
	defer resp.Body.Close()

	c.rateLimit.update(resp.Header)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		c.logger.Debug("release unchanged", "url", c.feedURL)
		return nil, false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	default:
		if resetAt, ok := rateLimited(resp.StatusCode, resp.Header, c.clock.Now()); ok {
			c.logger.Warn("release feed rate limited", "status", resp.StatusCode, "reset_at", resetAt)
			return nil, false, &RateLimitedError{StatusCode: resp.StatusCode, ResetAt: resetAt}
		}
		if transientStatus(resp.StatusCode) {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxReleaseBytes))
			return nil, true, &NetworkError{URL: c.feedURL, StatusCode: resp.StatusCode}
		}
		return nil, false, syncerr.New(syncerr.PhaseDownload, "fetch release", readAPIError(c.feedURL, resp))
	}

	body, err := readBounded(resp.Body, maxReleaseBytes)
	if err != nil {
		return nil, true, &NetworkError{URL: c.feedURL, Err: err}
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, false, syncerr.New(syncerr.PhaseDownload, "decode release", err)
	}
	if rel.Tag == "" {
		return nil, false, syncerr.New(syncerr.PhaseDownload, "decode release", errors.New("release has no tag_name"))
	}

	c.validator.put(resp.Header.Get("ETag"))
	c.logger.Debug("fetched release", "tag", rel.Tag, "assets", len(rel.Assets))
	return &rel, false, nil
}

// backoff returns the wait before retry n (0-based).
func (c *Client) backoff(n int) time.Duration {
	delay := c.retryBaseDelay
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return min(delay, MaxRetryDelay)
}

func (c *Client) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// FindAsset returns the asset matching the configured pattern.
func (c *Client) FindAsset(release *Release) *ReleaseAsset {
	return FindAssetByPattern(release, c.assetPattern)
}

// FindAssetByPattern returns the first asset whose name contains pattern.
func (c *Client) FindAssetByPattern(release *Release, pattern string) *ReleaseAsset {
	return FindAssetByPattern(release, pattern)
}

// AssetPattern returns the configured asset pattern.
func (c *Client) AssetPattern() string {
	return c.assetPattern
}

// RateLimitInfo returns a copy of the last rate-limit snapshot, or nil
// if no response has carried rate-limit headers yet.
func (c *Client) RateLimitInfo() *RateLimit {
	return c.rateLimit.snapshot()
}

// ClearCache forgets the stored ETag so the next fetch is unconditional.
func (c *Client) ClearCache() {
	c.validator.clear()
}

func transientStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout
}

// readBounded reads r fully, failing if it holds more than limit bytes.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}

func readAPIError(url string, resp *http.Response) *APIError {
	apiErr := &APIError{URL: url, StatusCode: resp.StatusCode}
	body, _ := readBounded(resp.Body, 64<<10)

	var wire struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
	} else {
		apiErr.Message = string(body)
	}
	return apiErr
}

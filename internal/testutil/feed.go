package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// PackageAssetName is the asset name FakeFeed publishes packages under.
const PackageAssetName = "content-package.zip"

// FakeFeed is an in-process release feed. It serves the latest release
// at URL() with ETag support and the published package blobs.
type FakeFeed struct {
	server *httptest.Server

	mu               sync.Mutex
	tag              string
	etag             string
	blobs            map[string][]byte
	failReleases     int
	downloadStatus   int
	rateLimitedUntil time.Time
	releaseRequests  int
	downloadRequests int
}

// NewFakeFeed starts a feed server that is closed when tb finishes.
func NewFakeFeed(tb testing.TB) *FakeFeed {
	tb.Helper()
	f := &FakeFeed{blobs: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", f.serveRelease)
	mux.HandleFunc("/download/", f.serveDownload)
	f.server = httptest.NewServer(mux)
	tb.Cleanup(f.server.Close)
	return f
}

// URL is the latest-release endpoint.
func (f *FakeFeed) URL() string {
	return f.server.URL + "/releases/latest"
}

// Publish makes blob the latest release under tag.
func (f *FakeFeed) Publish(tag string, blob []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag = tag
	f.etag = strconv.Quote(tag)
	f.blobs[tag] = blob
}

// FailReleases makes the next n release requests answer 503.
func (f *FakeFeed) FailReleases(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReleases = n
}

// FailDownloads makes package downloads answer status; 0 restores them.
func (f *FakeFeed) FailDownloads(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadStatus = status
}

// RateLimit refuses release requests until resetAt.
func (f *FakeFeed) RateLimit(resetAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimitedUntil = resetAt
}

// ClearRateLimit lifts a RateLimit.
func (f *FakeFeed) ClearRateLimit() {
	f.RateLimit(time.Time{})
}

// ReleaseRequests returns how many release requests were served.
func (f *FakeFeed) ReleaseRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseRequests
}

// DownloadRequests returns how many package downloads were served.
func (f *FakeFeed) DownloadRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloadRequests
}

func (f *FakeFeed) serveRelease(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseRequests++

	w.Header().Set("X-RateLimit-Limit", "60")
	if !f.rateLimitedUntil.IsZero() {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(f.rateLimitedUntil.Unix(), 10))
		http.Error(w, `{"message":"API rate limit exceeded"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("X-RateLimit-Remaining", "59")

	if f.failReleases > 0 {
		f.failReleases--
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if f.tag == "" {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	if r.Header.Get("If-None-Match") == f.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	blob := f.blobs[f.tag]
	body := map[string]any{
		"tag_name":     f.tag,
		"published_at": "2024-01-01T00:00:00Z",
		"assets": []map[string]any{
			{
				"name":                 "release-notes.md",
				"browser_download_url": f.server.URL + "/download/" + f.tag + "/release-notes.md",
				"size":                 0,
				"content_type":         "text/markdown",
			},
			{
				"name":                 PackageAssetName,
				"browser_download_url": f.server.URL + "/download/" + f.tag + "/" + PackageAssetName,
				"size":                 len(blob),
				"content_type":         "application/zip",
			},
		},
	}
	w.Header().Set("ETag", f.etag)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (f *FakeFeed) serveDownload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadRequests++

	if f.downloadStatus != 0 {
		http.Error(w, "download refused", f.downloadStatus)
		return
	}

	tag, name, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/download/"), "/")
	blob, ok := f.blobs[tag]
	if !ok || name != PackageAssetName {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Write(blob)
}

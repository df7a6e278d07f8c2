package feed

import (
	"strings"
	"time"
)

// ReleaseAsset is one downloadable file attached to a release.
type ReleaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Release is one published snapshot of the dataset. Tag is the release
// version string (vYYYY.MM.DD-rN).
type Release struct {
	Tag         string         `json:"tag_name"`
	PublishedAt time.Time      `json:"published_at"`
	Assets      []ReleaseAsset `json:"assets"`
}

// RateLimit is the feed's rate-limit counters as of the last response.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	ResetAt   time.Time
}

// Exhausted reports whether no requests remain in the current window.
func (r RateLimit) Exhausted() bool {
	return r.Remaining <= 0
}

// ProgressFunc receives download progress. total is 0 when the size is
// unknown.
type ProgressFunc func(bytesSoFar, total int64)

// FindAssetByPattern returns the first asset whose name contains
// pattern, or nil.
func FindAssetByPattern(release *Release, pattern string) *ReleaseAsset {
	if release == nil {
		return nil
	}
	for i := range release.Assets {
		if strings.Contains(release.Assets[i].Name, pattern) {
			return &release.Assets[i]
		}
	}
	return nil
}

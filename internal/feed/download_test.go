package feed

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/syncerr"
)

func TestDownloadAssetProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 10_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	var calls int
	var last, total int64
	data, err := c.DownloadAsset(context.Background(),
		ReleaseAsset{Name: "pkg.zip", DownloadURL: srv.URL + "/pkg.zip", Size: int64(len(payload))},
		func(soFar, all int64) {
			assert.GreaterOrEqual(t, soFar, last, "progress must not go backwards")
			calls++
			last, total = soFar, all
		})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Greater(t, calls, 1)
	assert.Equal(t, int64(len(payload)), last)
	assert.Equal(t, int64(len(payload)), total)
}

func TestDownloadAssetNoProgressCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	data, err := c.DownloadAsset(context.Background(), ReleaseAsset{Name: "a", DownloadURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tiny", string(data))
}

func TestDownloadAssetHTTPErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.DownloadAsset(context.Background(), ReleaseAsset{Name: "a", DownloadURL: srv.URL}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, syncerr.PhaseDownload, syncerr.PhaseOf(err))
	assert.Equal(t, int32(1), requests.Load())
}

func TestDownloadAssetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.DownloadAsset(context.Background(), ReleaseAsset{Name: "a", DownloadURL: srv.URL}, nil)
	assert.True(t, IsNotFound(err))
}

func TestDownloadAssetTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 4096))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.MaxDownloadBytes = 1024 })
	_, err := c.DownloadAsset(context.Background(), ReleaseAsset{Name: "big", DownloadURL: srv.URL}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1024")
}

func TestDownloadAssetMissingURL(t *testing.T) {
	c := newTestClient(t, "http://x", nil)
	_, err := c.DownloadAsset(context.Background(), ReleaseAsset{Name: "a"}, nil)
	assert.True(t, syncerr.IsDataSyncError(err))
}

package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/shelf/internal/syncerr"
)

const downloadChunkSize = 32 << 10

// DownloadAsset fetches the asset body, reporting progress after every
// chunk. Downloads are not retried: a failed download fails the install
// attempt and the next sync starts over.
func (c *Client) DownloadAsset(ctx context.Context, asset ReleaseAsset, onProgress ProgressFunc) ([]byte, error) {
	if asset.DownloadURL == "" {
		return nil, syncerr.New(syncerr.PhaseDownload, "download asset", fmt.Errorf("asset %q has no download URL", asset.Name))
	}

	req, err := c.newRequest(ctx, asset.DownloadURL, "application/octet-stream")
	if err != nil {
		return nil, syncerr.New(syncerr.PhaseDownload, "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, syncerr.New(syncerr.PhaseDownload, "download asset", ctx.Err())
		}
		return nil, syncerr.New(syncerr.PhaseDownload, "download asset",
			&NetworkError{URL: asset.DownloadURL, Attempts: 1, Err: err})
	}
	defer resp.Body.Close()

	c.rateLimit.update(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resetAt, ok := rateLimited(resp.StatusCode, resp.Header, c.clock.Now()); ok {
			return nil, &RateLimitedError{StatusCode: resp.StatusCode, ResetAt: resetAt}
		}
		return nil, syncerr.New(syncerr.PhaseDownload, "download asset", readAPIError(asset.DownloadURL, resp))
	}

	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}
	if total < 0 {
		total = 0
	}
	if total > c.maxDownloadBytes {
		return nil, syncerr.New(syncerr.PhaseDownload, "download asset",
			fmt.Errorf("asset %q is %d bytes, limit is %d", asset.Name, total, c.maxDownloadBytes))
	}

	c.logger.Info("downloading package", "asset", asset.Name, "bytes", total)

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	chunk := make([]byte, downloadChunkSize)
	var read int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			read += int64(n)
			if read > c.maxDownloadBytes {
				return nil, syncerr.New(syncerr.PhaseDownload, "download asset",
					fmt.Errorf("asset %q exceeds %d bytes", asset.Name, c.maxDownloadBytes))
			}
			buf.Write(chunk[:n])
			if onProgress != nil {
				onProgress(read, total)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, syncerr.New(syncerr.PhaseDownload, "download asset",
				&NetworkError{URL: asset.DownloadURL, Attempts: 1, Err: err})
		}
	}

	return buf.Bytes(), nil
}

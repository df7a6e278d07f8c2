package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// nearQuotaPercent is the usage level at which IsNearQuota reports true.
const nearQuotaPercent = 90.0

// Quota is a snapshot of local storage usage.
type Quota struct {
	UsedBytes   int64
	QuotaBytes  int64
	PercentUsed float64
}

// GetStorageQuota measures the database pages plus the asset cache
// files. The quota is the configured limit, or used plus the free space
// of the data directory's filesystem when none is configured.
func (s *Store) GetStorageQuota(ctx context.Context) (Quota, error) {
	db, cache, err := s.handles()
	if err != nil {
		return Quota{}, quotaErr("get quota", err)
	}

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return Quota{}, quotaErr("get quota", fmt.Errorf("page_count: %w", err))
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return Quota{}, quotaErr("get quota", fmt.Errorf("page_size: %w", err))
	}
	assetBytes, err := cache.Bytes()
	if err != nil {
		return Quota{}, quotaErr("get quota", err)
	}

	q := Quota{UsedBytes: pageCount*pageSize + assetBytes}
	if s.cfg.QuotaBytes > 0 {
		q.QuotaBytes = s.cfg.QuotaBytes
	} else {
		free, err := freeBytes(s.dataDir())
		if err != nil {
			return Quota{}, quotaErr("get quota", err)
		}
		q.QuotaBytes = q.UsedBytes + free
	}
	if q.QuotaBytes > 0 {
		q.PercentUsed = float64(q.UsedBytes) / float64(q.QuotaBytes) * 100
	}
	return q, nil
}

// IsNearQuota reports whether usage has reached 90% of the quota.
func (s *Store) IsNearQuota(ctx context.Context) (bool, error) {
	q, err := s.GetStorageQuota(ctx)
	if err != nil {
		return false, err
	}
	return q.PercentUsed >= nearQuotaPercent, nil
}

// HasSpace reports whether n more bytes fit within the quota.
func (s *Store) HasSpace(ctx context.Context, n int64) (bool, error) {
	q, err := s.GetStorageQuota(ctx)
	if err != nil {
		return false, err
	}
	return q.UsedBytes+n <= q.QuotaBytes, nil
}

func (s *Store) dataDir() string {
	if s.cfg.Dir != "" {
		return s.cfg.Dir
	}
	return filepath.Dir(s.cfg.DBPath)
}

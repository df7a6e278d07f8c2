package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/roach88/shelf/internal/record"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates an initialized store in a temp dir with an
// in-memory asset cache.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreWithConfig(t, Config{})
}

func createTestStoreWithConfig(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Dir == "" && cfg.DBPath == "" {
		cfg.Dir = t.TempDir()
	}
	if cfg.AssetFS == nil {
		cfg.AssetFS = memfs.New()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with the identity fields set.
func createTestRecord(id, name, category string) record.Record {
	return record.New(record.Object{
		record.FieldID:       record.String(id),
		record.FieldName:     record.String(name),
		record.FieldCategory: record.String(category),
	})
}

func createTestRecords(n int) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = createTestRecord(fmt.Sprintf("rec-%03d", i+1), fmt.Sprintf("Record %d", i+1), "icon")
	}
	return recs
}

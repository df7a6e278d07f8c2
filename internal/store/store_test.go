package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	s, err := Open(context.Background(), Config{Dir: dir})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFileName)); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.StoreRecord(ctx, createTestRecord("a", "A", "icon"), "v1.0.0"); err != nil {
		t.Fatalf("StoreRecord() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	n, err := s2.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountRecords() = %d, want 1", n)
	}
}

func TestOpen_DefaultAssetDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.CacheAsset("logo", []byte("<svg></svg>")); err != nil {
		t.Fatalf("CacheAsset() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, assetsDir)); err != nil {
		t.Errorf("asset directory not created: %v", err)
	}
}

func TestOpen_NoDirectory(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error without a data directory")
	}
	if KindOf(err) != KindRecordStore {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindRecordStore)
	}
}

func TestInit_Idempotent(t *testing.T) {
	s := createTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Init(context.Background()); err != nil {
			t.Fatalf("Init() iteration %d failed: %v", i, err)
		}
	}
	if !s.Initialized() {
		t.Error("Initialized() = false after Init")
	}
}

func TestOperationsBeforeInit(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Dir: t.TempDir()})

	_, err := s.GetAllRecords(ctx)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAllRecords() error = %v, want ErrNotInitialized", err)
	}
	if KindOf(err) != KindRecordStore {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindRecordStore)
	}

	_, err = s.GetAsset("x")
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAsset() error = %v, want ErrNotInitialized", err)
	}
	if KindOf(err) != KindAssetCache {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindAssetCache)
	}

	_, err = s.GetStorageQuota(ctx)
	if KindOf(err) != KindQuota {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindQuota)
	}
}

func TestClose_Uninitialized(t *testing.T) {
	s := New(Config{})
	if err := s.Close(); err != nil {
		t.Errorf("Close() on uninitialized store should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(context.Background(), Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if s.Initialized() {
		t.Error("Initialized() = true after Close")
	}
}

func TestClose_Reinitialize(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Close()

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() after Close failed: %v", err)
	}
	defer s.Close()
	if _, err := s.CountRecords(ctx); err != nil {
		t.Errorf("CountRecords() after reinit failed: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Schema tests

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)
	for _, table := range []string{"records", "metadata", "settings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestMigration_V1IndexesExist(t *testing.T) {
	s := createTestStore(t)
	for _, index := range []string{"idx_records_category", "idx_records_name"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			index,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q not found: %v", index, err)
		}
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("DROP INDEX idx_records_category"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	var name string
	if err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_records_category'",
	).Scan(&name); err != nil {
		t.Errorf("index not recreated: %v", err)
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.StoreRecords(ctx, createTestRecords(3), "v1.0.0"); err != nil {
		t.Fatalf("StoreRecords() failed: %v", err)
	}
	if err := s.CacheAsset("a", []byte("alpha")); err != nil {
		t.Fatalf("CacheAsset() failed: %v", err)
	}
	if err := s.SetMetadata(ctx, MetaVersion, "v1.0.0"); err != nil {
		t.Fatalf("SetMetadata() failed: %v", err)
	}
	if err := s.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() failed: %v", err)
	}

	if n, _ := s.CountRecords(ctx); n != 0 {
		t.Errorf("CountRecords() = %d after ClearAll", n)
	}
	if n, _ := s.AssetCount(); n != 0 {
		t.Errorf("AssetCount() = %d after ClearAll", n)
	}
	if _, ok, _ := s.GetMetadata(ctx, MetaVersion); ok {
		t.Error("metadata survived ClearAll")
	}
	if _, ok, _ := s.GetSetting(ctx, "theme"); ok {
		t.Error("setting survived ClearAll")
	}
}

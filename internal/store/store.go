package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added category and name indexes on records
const currentSchemaVersion = 1

const (
	dbFileName = "shelf.db"
	assetsDir  = "assets"
)

// Config locates the store on disk.
type Config struct {
	// Dir is the data directory. The database and the asset cache live
	// under it unless DBPath or AssetFS override them.
	Dir string

	// DBPath overrides the database location.
	DBPath string

	// AssetFS overrides the asset cache filesystem (memfs in tests).
	AssetFS billy.Filesystem

	// QuotaBytes caps local storage. Zero means the free space of the
	// filesystem holding Dir.
	QuotaBytes int64

	Logger *slog.Logger

	// Now stamps stored records. Defaults to time.Now.
	Now func() time.Time
}

// Store is the local persistence layer. Create it with New and call
// Init before use. It is safe for concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	db     *sql.DB
	assets *AssetCache
}

// New returns an uninitialized Store.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{cfg: cfg, logger: logger, now: now}
}

// Open is New followed by Init.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	s := New(cfg)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the database, applies pragmas and migrations, and opens
// the asset cache. Calling Init on an initialized store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	dbPath := s.cfg.DBPath
	if dbPath == "" {
		if s.cfg.Dir == "" {
			return recordErr("init", fmt.Errorf("no data directory configured"))
		}
		if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
			return recordErr("init", err)
		}
		dbPath = filepath.Join(s.cfg.Dir, dbFileName)
	}

	db, err := openDB(ctx, dbPath)
	if err != nil {
		return recordErr("init", err)
	}

	fs := s.cfg.AssetFS
	if fs == nil {
		fs = osfs.New(filepath.Join(filepath.Dir(dbPath), assetsDir))
	}

	s.db = db
	s.assets = NewAssetCache(fs, s.logger)
	s.logger.Debug("store initialized", "db", dbPath)
	return nil
}

// Initialized reports whether Init has succeeded.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Close closes the database. The store can be initialized again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.assets = nil
	if err != nil {
		return recordErr("close", err)
	}
	return nil
}

func (s *Store) handles() (*sql.DB, *AssetCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, nil, ErrNotInitialized
	}
	return s.db, s.assets, nil
}

func (s *Store) database(op string) (*sql.DB, error) {
	db, _, err := s.handles()
	if err != nil {
		return nil, recordErr(op, err)
	}
	return db, nil
}

func (s *Store) assetCache(op string) (*AssetCache, error) {
	_, cache, err := s.handles()
	if err != nil {
		return nil, assetErr(op, err)
	}
	return cache, nil
}

// ClearAll removes every record, asset, metadata key and setting.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.ClearRecords(ctx); err != nil {
		return err
	}
	if err := s.ClearAssetCache(); err != nil {
		return err
	}
	if err := s.ClearMetadata(ctx); err != nil {
		return err
	}
	return s.ClearSettings(ctx)
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the indexes used by category listing and name ordering.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
		CREATE INDEX IF NOT EXISTS idx_records_name ON records(name);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	db, err := s.database("verify pragma")
	if err != nil {
		return err
	}
	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

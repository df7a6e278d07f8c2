package store

import (
	"context"
	"database/sql"
	"errors"
)

// Well-known metadata keys.
const (
	MetaVersion        = "version"
	MetaPendingVersion = "pendingVersion"
	MetaLastSync       = "lastSync"
	MetaRecordCount    = "recordCount"
	MetaContentHash    = "contentHash"
)

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return s.setKV(ctx, "metadata", "set metadata", key, value)
}

// GetMetadata returns a metadata value; ok is false when the key is absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (value string, ok bool, err error) {
	return s.getKV(ctx, "metadata", "get metadata", key)
}

// DeleteMetadata removes a metadata key. Missing keys are not an error.
func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	return s.deleteKV(ctx, "metadata", "delete metadata", key)
}

// ClearMetadata removes every metadata key.
func (s *Store) ClearMetadata(ctx context.Context) error {
	return s.clearKV(ctx, "metadata", "clear metadata")
}

// SetSetting stores a user setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.setKV(ctx, "settings", "set setting", key, value)
}

// GetSetting returns a user setting; ok is false when the key is absent.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	return s.getKV(ctx, "settings", "get setting", key)
}

// ClearSettings removes every setting.
func (s *Store) ClearSettings(ctx context.Context) error {
	return s.clearKV(ctx, "settings", "clear settings")
}

// table is a literal chosen by the exported wrappers, never user input.
func (s *Store) setKV(ctx context.Context, table, op, key, value string) error {
	db, err := s.database(op)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		return recordErr(op, err)
	}
	return nil
}

func (s *Store) getKV(ctx context.Context, table, op, key string) (string, bool, error) {
	db, err := s.database(op)
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, recordErr(op, err)
	}
	return value, true, nil
}

func (s *Store) deleteKV(ctx context.Context, table, op, key string) error {
	db, err := s.database(op)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE key = ?`, key); err != nil {
		return recordErr(op, err)
	}
	return nil
}

func (s *Store) clearKV(ctx context.Context, table, op string) error {
	db, err := s.database(op)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return recordErr(op, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/shelf/internal/record"
)

const upsertRecordSQL = `
	INSERT INTO records (id, name, category, body, search_key, stored_at, version)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		body = excluded.body,
		search_key = excluded.search_key,
		stored_at = excluded.stored_at,
		version = excluded.version
`

// StoreRecord upserts a single record stamped with version.
func (s *Store) StoreRecord(ctx context.Context, rec record.Record, version string) error {
	return s.StoreRecords(ctx, []record.Record{rec}, version)
}

// StoreRecords upserts recs in one transaction. Either all are written
// or none are.
func (s *Store) StoreRecords(ctx context.Context, recs []record.Record, version string) error {
	return s.writeRecords(ctx, "store records", recs, version, false)
}

// ReplaceRecords atomically replaces the whole record set with recs.
func (s *Store) ReplaceRecords(ctx context.Context, recs []record.Record, version string) error {
	return s.writeRecords(ctx, "replace records", recs, version, true)
}

func (s *Store) writeRecords(ctx context.Context, op string, recs []record.Record, version string, replace bool) error {
	db, err := s.database(op)
	if err != nil {
		return err
	}

	rows := make([]recordRow, len(recs))
	for i, rec := range recs {
		if rows[i], err = marshalRecord(rec); err != nil {
			return recordErr(op, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return recordErr(op, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
			return recordErr(op, fmt.Errorf("delete: %w", err))
		}
	}

	if err := insertRows(ctx, tx, rows, s.now().UnixMilli(), version); err != nil {
		return recordErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return recordErr(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []recordRow, storedAt int64, version string) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.id, row.name, row.category, row.body, row.searchKey, storedAt, version,
		); err != nil {
			return fmt.Errorf("insert %q: %w", row.id, err)
		}
	}
	return nil
}

// ClearRecords deletes every record.
func (s *Store) ClearRecords(ctx context.Context) error {
	db, err := s.database("clear records")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return recordErr("clear records", err)
	}
	return nil
}

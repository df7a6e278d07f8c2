package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/shelf/internal/record"
)

const selectRecordColumns = `SELECT body, stored_at, version FROM records`

// GetRecord returns the record with id, or (nil, nil) if there is none.
func (s *Store) GetRecord(ctx context.Context, id string) (*record.Stored, error) {
	db, err := s.database("get record")
	if err != nil {
		return nil, err
	}

	var (
		body     string
		storedAt int64
		version  string
	)
	err = db.QueryRowContext(ctx, selectRecordColumns+` WHERE id = ?`, id).Scan(&body, &storedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, recordErr("get record", err)
	}

	rec, err := unmarshalRecord(body, storedAt, version)
	if err != nil {
		return nil, recordErr("get record", err)
	}
	return &rec, nil
}

// GetAllRecords returns every record ordered by id.
func (s *Store) GetAllRecords(ctx context.Context) ([]record.Stored, error) {
	return s.queryRecords(ctx, "get all records",
		selectRecordColumns+` ORDER BY id ASC COLLATE BINARY`)
}

// SearchRecords returns records whose name or id contains query,
// ignoring case, ordered by name then id. An empty query matches all.
func (s *Store) SearchRecords(ctx context.Context, query string) ([]record.Stored, error) {
	if query == "" {
		return s.GetAllRecords(ctx)
	}
	return s.queryRecords(ctx, "search records",
		selectRecordColumns+` WHERE search_key LIKE ? ESCAPE '\' ORDER BY name ASC, id ASC COLLATE BINARY`,
		likePattern(query))
}

// GetRecordsByCategory returns the records of one category ordered by id.
func (s *Store) GetRecordsByCategory(ctx context.Context, category string) ([]record.Stored, error) {
	return s.queryRecords(ctx, "get records by category",
		selectRecordColumns+` WHERE category = ? ORDER BY id ASC COLLATE BINARY`, category)
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	db, err := s.database("count records")
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, recordErr("count records", err)
	}
	return n, nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]record.Stored, error) {
	db, err := s.database(op)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, recordErr(op, err)
	}
	defer rows.Close()

	var out []record.Stored
	for rows.Next() {
		var (
			body     string
			storedAt int64
			version  string
		)
		if err := rows.Scan(&body, &storedAt, &version); err != nil {
			return nil, recordErr(op, fmt.Errorf("scan: %w", err))
		}
		rec, err := unmarshalRecord(body, storedAt, version)
		if err != nil {
			return nil, recordErr(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(op, err)
	}
	return out, nil
}

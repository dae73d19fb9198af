package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/randpic/internal/dbx"
)

const (
	getQuery    = `SELECT value FROM metadata WHERE key = ?`
	upsertQuery = `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteQuery = `DELETE FROM metadata WHERE key = ?`
	listQuery   = `SELECT key, value, updated_at FROM metadata ORDER BY key`
)

// SQLiteRepository keeps the profile documents in the metadata table, each
// stamped with its last write time (RFC 3339, UTC).
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func checkKey(key Key) error {
	if !key.Valid() {
		return fmt.Errorf("unknown metadata key %q", key)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := r.db.QueryRowContext(ctx, getQuery, string(key)).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get metadata[%s]: %w", key, err)
	case value == nil:
		// An empty last_image_id is still a stored value.
		return []byte{}, nil
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key Key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	stamp := r.now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, upsertQuery, string(key), value, stamp); err != nil {
		return fmt.Errorf("set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, deleteQuery, string(key)); err != nil {
		return fmt.Errorf("delete metadata[%s]: %w", key, err)
	}
	return nil
}

// List skips rows whose key is not one of the known keys.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			key   string
			e     Entry
			stamp string
		)
		if err := rows.Scan(&key, &e.Value, &stamp); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		e.Key = Key(key)
		if !e.Key.Valid() {
			continue
		}
		// Rows written before updated_at existed carry an empty stamp.
		if stamp != "" {
			if e.UpdatedAt, err = time.Parse(time.RFC3339, stamp); err != nil {
				return nil, fmt.Errorf("metadata[%s] updated_at: %w", key, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata rows: %w", err)
	}
	return entries, nil
}

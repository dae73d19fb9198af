package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.ImageRecord) error {
	query := `INSERT INTO images (id, data, origin_locator, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				data = excluded.data,
				origin_locator = excluded.origin_locator`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Data, rec.OriginLocator, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storageErr("put", rec.ID, fmt.Errorf("failed to upsert image: %w", err))
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.ImageRecord, error) {
	query := `SELECT id, data, origin_locator, created_at FROM images WHERE id = ?`

	var rec models.ImageRecord
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.Data, &rec.OriginLocator, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get", id, fmt.Errorf("failed to select image: %w", err))
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, storageErr("get", id, fmt.Errorf("bad created_at %q: %w", createdAt, err))
	}

	return &rec, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM images`); err != nil {
		return storageErr("clear", "", fmt.Errorf("failed to delete images: %w", err))
	}
	return nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, storageErr("count", "", err)
	}
	return n, nil
}

package images

import (
	"context"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/common"
)

// Repository is the image cache store.
type Repository interface {
	// Put stores rec under rec.ID, replacing any previous value.
	Put(ctx context.Context, rec *models.ImageRecord) error

	// Get returns the record for id, or (nil, nil) if none is stored.
	Get(ctx context.Context, id string) (*models.ImageRecord, error)

	// Clear removes all records.
	Clear(ctx context.Context) error
}

// Backend names accepted by configuration.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendS3     = "s3"
)

func storageErr(op, id string, err error) error {
	return &common.StorageError{Op: op, ID: id, Err: err}
}

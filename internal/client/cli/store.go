package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dmitrijs2005/randpic/internal/client/config"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/images"
)

// newS3API is replaced in tests.
var newS3API = func(ctx context.Context, opts images.S3Options) (images.S3API, error) {
	return images.NewS3Client(ctx, opts)
}

// openImageStore builds the configured cache backend, fronted by an in-memory
// LRU when MemoryCacheSize is positive. The returned closer is nil when the
// backend holds no resources of its own.
func openImageStore(ctx context.Context, cfg *config.Config, db *sql.DB, dataDir string) (images.Repository, io.Closer, error) {
	var (
		store  images.Repository
		closer io.Closer
	)

	switch cfg.CacheBackend {
	case "", images.BackendSQLite:
		store = images.NewSQLiteRepository(db)

	case images.BackendBolt:
		b, err := images.OpenBolt(filepath.Join(dataDir, "images.bolt"))
		if err != nil {
			return nil, nil, err
		}
		store, closer = b, b

	case images.BackendS3:
		if cfg.S3Bucket == "" {
			return nil, nil, errors.New("s3 backend needs a bucket")
		}
		api, err := newS3API(ctx, images.S3Options{
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		store = images.NewS3Repository(api, cfg.S3Bucket, cfg.S3Prefix)

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}

	if cfg.MemoryCacheSize > 0 {
		cached, err := images.NewCachedRepository(store, cfg.MemoryCacheSize)
		if err != nil {
			if closer != nil {
				_ = closer.Close()
			}
			return nil, nil, err
		}
		store = cached
	}

	return store, closer, nil
}

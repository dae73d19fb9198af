package images

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dmitrijs2005/randpic/internal/client/models"
)

var imagesBucket = []byte("images")

// BoltRepository keeps records as JSON values in a bbolt bucket.
type BoltRepository struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(imagesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Put(ctx context.Context, rec *models.ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return storageErr("put", rec.ID, err)
	}

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(imagesBucket)
		if prev := b.Get([]byte(rec.ID)); prev != nil {
			var old models.ImageRecord
			if json.Unmarshal(prev, &old) == nil && !old.CreatedAt.IsZero() {
				stored.CreatedAt = old.CreatedAt
			}
		}
		raw, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), raw)
	})
	if err != nil {
		return storageErr("put", rec.ID, err)
	}
	return nil
}

func (r *BoltRepository) Get(ctx context.Context, id string) (*models.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get", id, err)
	}

	var rec *models.ImageRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(imagesBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		rec = &models.ImageRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return rec, nil
}

func (r *BoltRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storageErr("clear", "", err)
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(imagesBucket) != nil {
			if err := tx.DeleteBucket(imagesBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(imagesBucket)
		return err
	})
	if err != nil {
		return storageErr("clear", "", err)
	}
	return nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

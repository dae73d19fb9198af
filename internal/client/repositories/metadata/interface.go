// Package metadata is the local key-value store for small JSON documents:
// favorites, history, stats, settings and the last displayed image id.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key names one stored document. Only the keys below are accepted.
type Key string

const (
	KeyFavorites   Key = "favorites"
	KeyHistory     Key = "history"
	KeyStats       Key = "stats"
	KeySettings    Key = "settings"
	KeyLastImageID Key = "last_image_id"
)

var knownKeys = map[Key]struct{}{
	KeyFavorites:   {},
	KeyHistory:     {},
	KeyStats:       {},
	KeySettings:    {},
	KeyLastImageID: {},
}

func (k Key) Valid() bool {
	_, ok := knownKeys[k]
	return ok
}

// Entry is one stored document with the time it was last written.
type Entry struct {
	Key       Key
	Value     []byte
	UpdatedAt time.Time
}

// Repository stores opaque values by key. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error

	// List returns every stored entry ordered by key.
	List(ctx context.Context) ([]Entry, error)
}

// GetJSON decodes the value under key into dst. It reports false when the key
// is absent, leaving dst untouched.
func GetJSON(ctx context.Context, r Repository, key Key, dst any) (bool, error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode metadata[%s]: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, r Repository, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode metadata[%s]: %w", key, err)
	}
	return r.Set(ctx, key, raw)
}

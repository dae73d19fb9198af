package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/randpic/internal/common"
)

// Collections manages the favorites and history lists. Both are stored as
// whole JSON arrays, most recent first, de-duplicated by id and bounded.
type Collections struct {
	kv  metadata.Repository
	now func() time.Time

	mu sync.Mutex
}

func NewCollections(kv metadata.Repository) *Collections {
	return &Collections{kv: kv, now: time.Now}
}

func collectionKey(kind models.CollectionKind) (key metadata.Key, limit int, err error) {
	switch kind {
	case models.CollectionFavorites:
		return metadata.KeyFavorites, common.MaxFavorites, nil
	case models.CollectionHistory:
		return metadata.KeyHistory, common.MaxHistory, nil
	}
	return "", 0, fmt.Errorf("collection %q is not a list", kind)
}

// pushFront puts item first, drops any older entry with the same id and
// trims the list to limit.
func pushFront(items []models.CollectionItem, item models.CollectionItem, limit int) []models.CollectionItem {
	out := make([]models.CollectionItem, 0, min(len(items)+1, limit))
	out = append(out, item)
	for _, it := range items {
		if len(out) == limit {
			break
		}
		if it.ID != item.ID {
			out = append(out, it)
		}
	}
	return out
}

func (c *Collections) load(ctx context.Context, key metadata.Key) ([]models.CollectionItem, error) {
	var items []models.CollectionItem
	if _, err := metadata.GetJSON(ctx, c.kv, key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Collections) List(ctx context.Context, kind models.CollectionKind) ([]models.CollectionItem, error) {
	key, _, err := collectionKey(kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx, key)
}

// Add moves id to the front of the list, inserting it if needed.
func (c *Collections) Add(ctx context.Context, kind models.CollectionKind, id, locator string) error {
	key, limit, err := collectionKey(kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx, key)
	if err != nil {
		return err
	}
	items = pushFront(items, models.CollectionItem{ID: id, OriginLocator: locator, AddedAt: c.now().UTC()}, limit)
	return metadata.SetJSON(ctx, c.kv, key, items)
}

// Remove deletes id from the list. Removing an absent id is not an error.
func (c *Collections) Remove(ctx context.Context, kind models.CollectionKind, id string) (bool, error) {
	key, _, err := collectionKey(kind)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx, key)
	if err != nil {
		return false, err
	}

	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, metadata.SetJSON(ctx, c.kv, key, kept)
}

func (c *Collections) Clear(ctx context.Context, kind models.CollectionKind) error {
	key, _, err := collectionKey(kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Delete(ctx, key)
}

// Lookup finds id in the given collection. CollectionAny searches favorites
// first, then history. A nil item means the id is not recorded.
func (c *Collections) Lookup(ctx context.Context, kind models.CollectionKind, id string) (*models.CollectionItem, error) {
	kinds := []models.CollectionKind{kind}
	if kind == models.CollectionAny {
		kinds = []models.CollectionKind{models.CollectionFavorites, models.CollectionHistory}
	}

	for _, k := range kinds {
		items, err := c.List(ctx, k)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.ID == id {
				found := it
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (c *Collections) IsFavorite(ctx context.Context, id string) (bool, error) {
	item, err := c.Lookup(ctx, models.CollectionFavorites, id)
	return item != nil, err
}

// ToggleFavorite adds id to favorites, or removes it if already there. It
// reports whether the id is a favorite afterwards.
func (c *Collections) ToggleFavorite(ctx context.Context, id, locator string) (bool, error) {
	removed, err := c.Remove(ctx, models.CollectionFavorites, id)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if err := c.Add(ctx, models.CollectionFavorites, id, locator); err != nil {
		return false, err
	}
	return true, nil
}

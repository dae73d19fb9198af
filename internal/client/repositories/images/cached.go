package images

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrijs2005/randpic/internal/client/models"
)

// CachedRepository keeps the most recently used records in memory in front of
// a persistent backend. Writes go to the backend first.
//
// Every Clear bumps a generation before and after clearing the backend. A
// read-through or write that began in an older generation does not fill the
// memory cache, so a cleared record never comes back.
type CachedRepository struct {
	next  Repository
	cache *lru.Cache[string, *models.ImageRecord]

	mu  sync.Mutex
	gen uint64
}

func NewCachedRepository(next Repository, size int) (*CachedRepository, error) {
	cache, err := lru.New[string, *models.ImageRecord](size)
	if err != nil {
		return nil, fmt.Errorf("lru: %w", err)
	}
	return &CachedRepository{next: next, cache: cache}, nil
}

func (r *CachedRepository) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// remember stores a copy of rec unless a Clear ran since gen was read.
func (r *CachedRepository) remember(gen uint64, rec *models.ImageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	stored := *rec
	r.cache.Add(rec.ID, &stored)
}

func (r *CachedRepository) Put(ctx context.Context, rec *models.ImageRecord) error {
	gen := r.generation()
	if err := r.next.Put(ctx, rec); err != nil {
		r.cache.Remove(rec.ID)
		return err
	}
	r.remember(gen, rec)
	return nil
}

func (r *CachedRepository) Get(ctx context.Context, id string) (*models.ImageRecord, error) {
	if rec, ok := r.cache.Get(id); ok {
		out := *rec
		return &out, nil
	}

	gen := r.generation()
	rec, err := r.next.Get(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}

	r.remember(gen, rec)
	return rec, nil
}

func (r *CachedRepository) Clear(ctx context.Context) error {
	r.purge()
	defer r.purge()
	return r.next.Clear(ctx)
}

func (r *CachedRepository) purge() {
	r.mu.Lock()
	r.gen++
	r.cache.Purge()
	r.mu.Unlock()
}

// Len reports how many records are held in memory.
func (r *CachedRepository) Len() int {
	return r.cache.Len()
}

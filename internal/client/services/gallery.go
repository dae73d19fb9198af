package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/images"
	"github.com/dmitrijs2005/randpic/internal/filex"
	"github.com/dmitrijs2005/randpic/internal/logging"
)

const (
	ThumbnailSize   = 120
	galleryParallel = 4
)

type GalleryEntry struct {
	Item   models.CollectionItem
	Cached bool
	// Thumbnail is a JPEG, set only when requested and the image is cached.
	Thumbnail []byte
}

// Gallery lists favorites or history together with their cache state.
type Gallery struct {
	collections *Collections
	store       images.Repository
	log         logging.Logger
}

func NewGallery(collections *Collections, store images.Repository, log logging.Logger) *Gallery {
	if log == nil {
		log = logging.NewNop()
	}
	return &Gallery{collections: collections, store: store, log: log}
}

// Entries loads every item of kind, checking the cache concurrently. A
// thumbnail that cannot be produced is logged and left empty.
func (g *Gallery) Entries(ctx context.Context, kind models.CollectionKind, withThumbs bool) ([]GalleryEntry, error) {
	items, err := g.collections.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	entries := make([]GalleryEntry, len(items))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(galleryParallel)

	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			entries[i].Item = item

			rec, err := g.store.Get(ctx, item.ID)
			if err != nil {
				return err
			}
			if rec == nil {
				return nil
			}
			entries[i].Cached = true

			if withThumbs {
				thumb, err := Thumbnail(rec.Data, ThumbnailSize)
				if err != nil {
					g.log.Warn(ctx, "thumbnail failed", "id", item.ID, "error", err)
					return nil
				}
				entries[i].Thumbnail = thumb
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteThumbnails saves thumb_<id>.jpg for every cached item of kind into dir
// and returns how many were written.
func (g *Gallery) WriteThumbnails(ctx context.Context, kind models.CollectionKind, dir string) (int, error) {
	entries, err := g.Entries(ctx, kind, true)
	if err != nil {
		return 0, err
	}

	dir, err = filex.EnsureDir(dir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if len(e.Thumbnail) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("thumb_%s.jpg", e.Item.ID))
		if err := filex.WriteFileAtomic(path, e.Thumbnail, 0o644); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Thumbnail crops data to a size x size square and encodes it as JPEG.
func Thumbnail(data []byte, size int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

package images

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/randpic/internal/client/models"
)

func newRecord(locator string) *models.ImageRecord {
	return &models.ImageRecord{
		ID:            uuid.NewString(),
		Data:          []byte("\xff\xd8\xff" + locator),
		OriginLocator: locator,
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// runRepositoryContract checks the behavior every backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing returns nil nil", func(t *testing.T) {
		r := newRepo(t)
		rec, err := r.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("put then get", func(t *testing.T) {
		r := newRepo(t)
		want := newRecord("https://img.example/a.jpg?x=1&y=2")
		require.NoError(t, r.Put(ctx, want))

		got, err := r.Get(ctx, want.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.ID, got.ID)
		assert.True(t, bytes.Equal(want.Data, got.Data))
		assert.Equal(t, want.OriginLocator, got.OriginLocator)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("put twice is idempotent", func(t *testing.T) {
		r := newRepo(t)
		rec := newRecord("https://img.example/b.png")
		require.NoError(t, r.Put(ctx, rec))
		first, err := r.Get(ctx, rec.ID)
		require.NoError(t, err)

		require.NoError(t, r.Put(ctx, rec))
		second, err := r.Get(ctx, rec.ID)
		require.NoError(t, err)

		assert.Equal(t, first.Data, second.Data)
		assert.Equal(t, first.OriginLocator, second.OriginLocator)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		r := newRepo(t)
		recs := []*models.ImageRecord{newRecord("u1"), newRecord("u2"), newRecord("u3")}
		for _, rec := range recs {
			require.NoError(t, r.Put(ctx, rec))
		}

		require.NoError(t, r.Clear(ctx))

		for _, rec := range recs {
			got, err := r.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		}

		again := newRecord("u4")
		require.NoError(t, r.Put(ctx, again))
		got, err := r.Get(ctx, again.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/preload"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/images"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/randpic/internal/common"
)

func historyIDs(t *testing.T, h *harness) []string {
	t.Helper()
	items, err := h.collections.List(context.Background(), models.CollectionHistory)
	require.NoError(t, err)
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestViewer_EndToEnd_FreshStartThenPreload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, first.Source)
	assert.Equal(t, []byte("img-1"), first.Record.Data)

	x := first.Record.ID
	assert.Equal(t, x, h.viewer.Session().CurrentImageID)
	assert.Equal(t, []string{x}, historyIDs(t, h))

	assert.Equal(t, preload.Ready, h.waitSettled(t).state)
	assert.Equal(t, 2, h.fetcher.Calls())

	// Hold the preload that the next display will start, so the count is stable.
	h.fetcher.hold(3)

	second, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourcePreload, second.Source)
	assert.Equal(t, []byte("img-2"), second.Record.Data)

	y := second.Record.ID
	assert.NotEqual(t, x, y)
	assert.Equal(t, y, h.viewer.Session().CurrentImageID)
	assert.Equal(t, []string{y, x}, historyIDs(t, h))

	h.fetcher.waitEntered(t, 3)
	assert.Equal(t, 3, h.fetcher.Calls(), "only the next preload fetched")
}

func TestViewer_CurrentImageIsAlwaysCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.viewer.ShowNew(ctx)
		require.NoError(t, err)

		id := h.viewer.Session().CurrentImageID
		rec, err := h.store.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec, "current image %s must be in the store", id)
	}
}

func TestViewer_SingleFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	release := h.fetcher.hold(1)

	type out struct {
		shown *Shown
		err   error
	}
	done := make(chan out, 1)
	go func() {
		s, err := h.viewer.ShowNew(ctx)
		done <- out{s, err}
	}()
	h.fetcher.waitEntered(t, 1)

	assert.True(t, h.viewer.Session().MainLoadInFlight)

	_, err := h.viewer.ShowNew(ctx)
	require.ErrorIs(t, err, common.ErrBusy)
	_, err = h.viewer.ShowByID(ctx, "whatever", models.CollectionAny)
	require.ErrorIs(t, err, common.ErrBusy)
	assert.Empty(t, h.viewer.Session().CurrentImageID)

	close(release)
	res := <-done
	require.NoError(t, res.err)

	assert.Equal(t, res.shown.Record.ID, h.viewer.Session().CurrentImageID)
	assert.False(t, h.viewer.Session().MainLoadInFlight)
	assert.Len(t, historyIDs(t, h), 1)
}

func TestViewer_PreloadDiscardedAfterInvalidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	releasePreload := h.fetcher.hold(2)

	_, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	h.fetcher.waitEntered(t, 2)
	t1 := h.viewer.PreloadStatus().Token

	require.NoError(t, h.viewer.ClearCache(ctx))
	assert.Greater(t, h.viewer.PreloadStatus().Token, t1)

	close(releasePreload)
	s := h.waitSettled(t)
	assert.Equal(t, settled{t1, preload.Discarded}, s)
	assert.NotEqual(t, preload.Ready, h.viewer.PreloadStatus().State)

	shown, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, shown.Source)
	assert.Equal(t, []byte("img-3"), shown.Record.Data, "must not consume the stale preload")
}

func TestViewer_ShowNewWhilePreloadFetchingInvalidatesIt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	releasePreload := h.fetcher.hold(2)
	_, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	h.fetcher.waitEntered(t, 2)

	shown, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, shown.Source)
	assert.Equal(t, []byte("img-3"), shown.Record.Data)

	close(releasePreload)
	for {
		s := h.waitSettled(t)
		if s.state == preload.Discarded {
			break
		}
	}
	assert.Equal(t, shown.Record.ID, h.viewer.Session().CurrentImageID)
}

func TestViewer_FailureLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	h.waitSettled(t)
	h.viewer.preload.Invalidate()

	h.fetcher.setErr(&common.FetchError{Locator: "x", Attempts: 3, Err: errors.New("503")})

	_, err = h.viewer.ShowNew(ctx)
	require.ErrorIs(t, err, common.ErrFetch)
	assert.Equal(t, first.Record.ID, h.viewer.Session().CurrentImageID)
	assert.Len(t, historyIDs(t, h), 1)
}

func TestViewer_PreloadFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	require.Equal(t, preload.Ready, h.waitSettled(t).state)

	h.fetcher.setErr(errors.New("offline"))
	_, err = h.viewer.ShowNew(ctx)
	require.NoError(t, err, "ready preload is used without the network")
	assert.Equal(t, preload.Failed, h.waitSettled(t).state)

	h.fetcher.setErr(nil)
	shown, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, shown.Source)
}

func TestViewer_ShowByID(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit does not fetch", func(t *testing.T) {
		h := newHarness(t)
		first, err := h.viewer.ShowNew(ctx)
		require.NoError(t, err)
		h.waitSettled(t)
		calls := h.fetcher.Calls()
		h.fetcher.hold(calls + 1)

		shown, err := h.viewer.ShowByID(ctx, first.Record.ID, models.CollectionHistory)
		require.NoError(t, err)
		assert.Equal(t, SourceCache, shown.Source)
		assert.Equal(t, first.Record.ID, h.viewer.Session().CurrentImageID)
		assert.Equal(t, calls, h.fetcher.Calls(), "preload still ready, nothing fetched")
	})

	t.Run("miss re-fetches from favorite locator under same id", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.collections.Add(ctx, models.CollectionFavorites, "fav-1", "http://img.test/stable/1.jpg"))

		shown, err := h.viewer.ShowByID(ctx, "fav-1", models.CollectionFavorites)
		require.NoError(t, err)
		assert.Equal(t, SourceRefetch, shown.Source)
		assert.Equal(t, "http://img.test/stable/1.jpg", h.fetcher.Locators()[0])

		rec, err := h.store.Get(ctx, "fav-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "http://img.test/stable/1.jpg", rec.OriginLocator)
		assert.Equal(t, "fav-1", h.viewer.Session().CurrentImageID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.viewer.ShowByID(ctx, "ghost", models.CollectionAny)
		require.ErrorIs(t, err, common.ErrNotFound)
		assert.Zero(t, h.fetcher.Calls())
		assert.False(t, h.viewer.Session().HasImage())
	})

	t.Run("hint restricts lookup", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.collections.Add(ctx, models.CollectionHistory, "h-1", "http://img.test/h.jpg"))

		_, err := h.viewer.ShowByID(ctx, "h-1", models.CollectionFavorites)
		require.ErrorIs(t, err, common.ErrNotFound)

		_, err = h.viewer.ShowByID(ctx, "h-1", models.CollectionAny)
		require.NoError(t, err)
	})
}

func TestViewer_ClearCacheKeepsFavoriteLocators(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	shown, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	id, locator := shown.Record.ID, shown.Record.OriginLocator

	fav, err := h.viewer.ToggleFavorite(ctx)
	require.NoError(t, err)
	require.True(t, fav)

	require.NoError(t, h.viewer.ClearCache(ctx))

	rec, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec)

	item, err := h.collections.Lookup(ctx, models.CollectionFavorites, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, locator, item.OriginLocator)

	assert.False(t, h.viewer.Session().HasImage())
	last, err := h.prefs.LastImageID(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)

	again, err := h.viewer.ShowByID(ctx, id, models.CollectionFavorites)
	require.NoError(t, err)
	assert.Equal(t, SourceRefetch, again.Source)
	assert.Equal(t, locator, again.Record.OriginLocator)
}

func TestViewer_ResumeShowsLastImageWithoutCounting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	shown, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	h.waitSettled(t)

	statsBefore, err := h.prefs.Stats(ctx)
	require.NoError(t, err)
	historyBefore := historyIDs(t, h)

	restarted := h.newViewer(t)
	resumed, err := restarted.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, resumed.Source)
	assert.Equal(t, shown.Record.ID, restarted.Session().CurrentImageID)

	statsAfter, err := h.prefs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)
	assert.Equal(t, historyBefore, historyIDs(t, h))
}

func TestViewer_ResumeWithoutCacheLoadsNew(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.prefs.SetLastImageID(ctx, "gone"))

	shown, err := h.viewer.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, shown.Source)
}

func TestViewer_SetQualityRestartsPreloadAtNewQuality(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	first := h.waitSettled(t)
	require.Equal(t, preload.Ready, first.state)

	require.NoError(t, h.viewer.SetQuality(ctx, models.QualityCompressed))

	s := h.waitSettled(t)
	assert.Greater(t, s.token, first.token)
	assert.Equal(t, preload.Ready, s.state)

	locs := h.fetcher.Locators()
	assert.Contains(t, locs[0], "quality=original")
	assert.True(t, strings.Contains(locs[len(locs)-1], "quality=compressed"))

	settings, err := h.prefs.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.QualityCompressed, settings.Quality)
}

func TestViewer_SetQualityWithoutImageDoesNotPreload(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.viewer.SetQuality(context.Background(), models.QualityCompressed))
	assert.Equal(t, preload.Idle, h.viewer.PreloadStatus().State)
	assert.Zero(t, h.fetcher.Calls())
}

func TestViewer_Previous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.viewer.Previous(ctx)
	require.ErrorIs(t, err, common.ErrNotFound)

	var shown []string
	for i := 0; i < 3; i++ {
		s, err := h.viewer.ShowNew(ctx)
		require.NoError(t, err)
		shown = append(shown, s.Record.ID)
	}
	a, b, c := shown[0], shown[1], shown[2]
	require.Equal(t, []string{c, b, a}, historyIDs(t, h))

	back, err := h.viewer.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, back.Record.ID)

	back, err = h.viewer.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, back.Record.ID, "second step reaches the oldest image")

	_, err = h.viewer.Previous(ctx)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, a, h.viewer.Session().CurrentImageID)

	assert.Equal(t, []string{c, b, a}, historyIDs(t, h), "walking back keeps history order")

	last, err := h.prefs.LastImageID(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, last)

	st, err := h.prefs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Views)

	next, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{next.Record.ID, c, b, a}, historyIDs(t, h))
}

// failingKV fails every Set of one key.
type failingKV struct {
	metadata.Repository
	key metadata.Key
}

func (f failingKV) Set(ctx context.Context, key metadata.Key, value []byte) error {
	if key == f.key {
		return errors.New("disk full")
	}
	return f.Repository.Set(ctx, key, value)
}

func TestViewer_HistoryFailureKeepsLastImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.viewer.ShowNew(ctx)
	require.NoError(t, err)
	h.waitSettled(t)

	h.collections = NewCollections(failingKV{Repository: h.kv, key: metadata.KeyHistory})
	v := h.newViewer(t)

	_, err = v.ShowNew(ctx)
	require.Error(t, err)
	assert.False(t, v.Session().HasImage())

	last, err := h.prefs.LastImageID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Record.ID, last, "last image id is rolled back")
	assert.Equal(t, []string{first.Record.ID}, historyIDs(t, h))
}

func TestViewer_HistoryFailureOnFreshProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.collections = NewCollections(failingKV{Repository: h.kv, key: metadata.KeyHistory})
	v := h.newViewer(t)

	_, err := v.ShowNew(ctx)
	require.Error(t, err)

	last, err := h.prefs.LastImageID(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)
}

// failingPutStore fails Put while failPut is set.
type failingPutStore struct {
	images.Repository
	failPut atomic.Bool
}

func (s *failingPutStore) Put(ctx context.Context, rec *models.ImageRecord) error {
	if s.failPut.Load() {
		return &common.StorageError{Op: "put", ID: rec.ID, Err: errors.New("read-only")}
	}
	return s.Repository.Put(ctx, rec)
}

func TestViewer_CurrentReportsRecacheFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	store := &failingPutStore{Repository: h.store}
	h.store = store
	v := h.newViewer(t)

	_, err := v.ShowNew(ctx)
	require.NoError(t, err)
	h.waitSettled(t)

	require.NoError(t, store.Clear(ctx))
	store.failPut.Store(true)

	_, err = v.Current(ctx)
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestViewer_ToggleFavoriteRequiresImage(t *testing.T) {
	h := newHarness(t)
	_, err := h.viewer.ToggleFavorite(context.Background())
	require.ErrorIs(t, err, common.ErrNoCurrentImage)
}

func TestViewer_ViewsAreCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.viewer.ShowNew(ctx)
		require.NoError(t, err)
	}

	st, err := h.prefs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Views)
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/randpic/internal/client/client"
	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/preload"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/images"
	"github.com/dmitrijs2005/randpic/internal/common"
	"github.com/dmitrijs2005/randpic/internal/logging"
)

// Source tells where a displayed image came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourcePreload Source = "preload"
	SourceRemote  Source = "remote"
	SourceRefetch Source = "refetch"
)

// Shown is the result of a successful display.
type Shown struct {
	Record *models.ImageRecord
	Source Source
}

// ViewerDeps are the collaborators of a Viewer.
type ViewerDeps struct {
	Fetcher     client.Fetcher
	Endpoint    *client.Endpoint
	Store       images.Repository
	Collections *Collections
	Preferences *Preferences
	Logger      logging.Logger

	// PreloadOptions are passed to the preload coordinator.
	PreloadOptions []preload.Option
}

// Viewer is the display/session controller.
type Viewer struct {
	fetcher     client.Fetcher
	endpoint    *client.Endpoint
	store       images.Repository
	collections *Collections
	prefs       *Preferences
	preload     *preload.Coordinator
	log         logging.Logger

	guard *semaphore.Weighted
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	session models.DisplaySession
}

func NewViewer(deps ViewerDeps) *Viewer {
	log := deps.Logger
	if log == nil {
		log = logging.NewNop()
	}

	v := &Viewer{
		fetcher:     deps.Fetcher,
		endpoint:    deps.Endpoint,
		store:       deps.Store,
		collections: deps.Collections,
		prefs:       deps.Preferences,
		log:         log,
		guard:       semaphore.NewWeighted(1),
		now:         time.Now,
		newID:       uuid.NewString,
	}

	opts := append([]preload.Option{preload.WithLogger(log.With("component", "preload"))}, deps.PreloadOptions...)
	v.preload = preload.New(v.fetchAndStore, opts...)
	return v
}

// Close stops background preloading and waits for it to finish.
func (v *Viewer) Close() {
	v.preload.Close()
}

func (v *Viewer) Session() models.DisplaySession {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *Viewer) PreloadStatus() preload.Status {
	return v.preload.Status()
}

// begin takes the single-flight guard. Overlapping foreground loads are
// rejected, not queued.
func (v *Viewer) begin() (func(), error) {
	if !v.guard.TryAcquire(1) {
		return nil, common.ErrBusy
	}
	v.setInFlight(true)
	return func() {
		v.setInFlight(false)
		v.guard.Release(1)
	}, nil
}

func (v *Viewer) setInFlight(b bool) {
	v.mu.Lock()
	v.session.MainLoadInFlight = b
	v.mu.Unlock()
}

// fetchAndStore fetches a new random image at the current quality and caches
// it under a fresh id. It also serves as the preload producer.
func (v *Viewer) fetchAndStore(ctx context.Context) (*models.ImageRecord, error) {
	settings, err := v.prefs.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	res, err := v.fetcher.Fetch(ctx, v.endpoint.RandomURL(settings.Quality, v.now()))
	if err != nil {
		return nil, err
	}

	rec := &models.ImageRecord{
		ID:            v.newID(),
		Data:          res.Data,
		OriginLocator: res.Locator,
		CreatedAt:     v.now().UTC(),
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ShowNew displays a new random image: the ready preload if there is one,
// otherwise a freshly fetched image.
func (v *Viewer) ShowNew(ctx context.Context) (*Shown, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if rec, ok := v.preload.Take(); ok {
		if err := v.display(ctx, rec, displayNew); err != nil {
			return nil, err
		}
		return &Shown{Record: rec, Source: SourcePreload}, nil
	}

	v.preload.Invalidate()

	rec, err := v.fetchAndStore(ctx)
	if err != nil {
		v.log.Error(ctx, "load new image failed", "error", err)
		return nil, err
	}
	if err := v.display(ctx, rec, displayNew); err != nil {
		return nil, err
	}
	return &Shown{Record: rec, Source: SourceRemote}, nil
}

// ShowByID displays a previously seen image. When the cache no longer holds
// it, the image is re-fetched from the origin locator recorded in the hinted
// collection and stored again under the same id.
func (v *Viewer) ShowByID(ctx context.Context, id string, hint models.CollectionKind) (*Shown, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	rec, source, err := v.resolve(ctx, id, hint)
	if err != nil {
		return nil, err
	}
	if err := v.display(ctx, rec, displayNew); err != nil {
		return nil, err
	}
	return &Shown{Record: rec, Source: source}, nil
}

func (v *Viewer) resolve(ctx context.Context, id string, hint models.CollectionKind) (*models.ImageRecord, Source, error) {
	rec, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if rec != nil {
		return rec, SourceCache, nil
	}

	item, err := v.collections.Lookup(ctx, hint, id)
	if err != nil {
		return nil, "", err
	}
	if item == nil || item.OriginLocator == "" {
		return nil, "", fmt.Errorf("image %s: %w", id, common.ErrNotFound)
	}

	res, err := v.fetcher.Fetch(ctx, item.OriginLocator)
	if err != nil {
		return nil, "", err
	}

	rec = &models.ImageRecord{
		ID:            id,
		Data:          res.Data,
		OriginLocator: item.OriginLocator,
		CreatedAt:     v.now().UTC(),
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return nil, "", err
	}

	v.log.Info(ctx, "image re-fetched", "id", id, "locator", item.OriginLocator)
	return rec, SourceRefetch, nil
}

type displayMode int

const (
	// displayNew counts a view, makes the image the last one shown and moves
	// it to the front of history.
	displayNew displayMode = iota
	// displayBack is displayNew without touching history order, so repeated
	// Previous calls walk further back.
	displayBack
	// displayResume only restores the session.
	displayResume
)

// display persists the new "now showing" state, then updates the session and
// starts preloading the next image. Nothing in the session changes if
// persisting fails.
func (v *Viewer) display(ctx context.Context, rec *models.ImageRecord, mode displayMode) error {
	if mode != displayResume {
		if err := v.persistShown(ctx, rec, mode == displayNew); err != nil {
			return err
		}
	}

	v.mu.Lock()
	v.session.CurrentImageID = rec.ID
	v.session.CurrentOriginLocator = rec.OriginLocator
	v.mu.Unlock()

	if mode != displayResume {
		if err := v.prefs.Incr(ctx, StatViews); err != nil {
			v.log.Warn(ctx, "count view failed", "error", err)
		}
	}

	v.log.Info(ctx, "image displayed", "id", rec.ID, "bytes", len(rec.Data))
	v.preload.Start()
	return nil
}

// persistShown saves last_image_id and, when pushHistory is set, moves the id
// to the front of history. A failed history write restores the previous
// last_image_id.
func (v *Viewer) persistShown(ctx context.Context, rec *models.ImageRecord, pushHistory bool) error {
	prev, err := v.prefs.LastImageID(ctx)
	if err != nil {
		return fmt.Errorf("load last image: %w", err)
	}
	if err := v.prefs.SetLastImageID(ctx, rec.ID); err != nil {
		return fmt.Errorf("save last image: %w", err)
	}
	if !pushHistory {
		return nil
	}

	if err := v.collections.Add(ctx, models.CollectionHistory, rec.ID, rec.OriginLocator); err != nil {
		restore := v.prefs.SetLastImageID(ctx, prev)
		if prev == "" {
			restore = v.prefs.ClearLastImageID(ctx)
		}
		if restore != nil {
			v.log.Warn(ctx, "restore last image failed", "id", prev, "error", restore)
		}
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}

// Resume restores the last shown image from the cache at process start. It
// does not count a view or touch history. Without a usable cached image it
// falls back to ShowNew.
func (v *Viewer) Resume(ctx context.Context) (*Shown, error) {
	shown, err := v.resumeCached(ctx)
	if err != nil || shown != nil {
		return shown, err
	}
	return v.ShowNew(ctx)
}

func (v *Viewer) resumeCached(ctx context.Context) (*Shown, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	id, err := v.prefs.LastImageID(ctx)
	if err != nil || id == "" {
		return nil, err
	}

	rec, err := v.store.Get(ctx, id)
	if err != nil {
		v.log.Warn(ctx, "resume lookup failed", "id", id, "error", err)
		return nil, nil
	}
	if rec == nil {
		return nil, nil
	}

	if err := v.display(ctx, rec, displayResume); err != nil {
		return nil, err
	}
	return &Shown{Record: rec, Source: SourceCache}, nil
}

// Previous shows the image viewed before the current one. History order is
// left alone, so calling it again keeps walking back.
func (v *Viewer) Previous(ctx context.Context) (*Shown, error) {
	done, err := v.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	history, err := v.collections.List(ctx, models.CollectionHistory)
	if err != nil {
		return nil, err
	}

	target := ""
	current := v.Session().CurrentImageID
	for i, it := range history {
		if it.ID == current && i+1 < len(history) {
			target = history[i+1].ID
			break
		}
	}
	if current == "" && len(history) > 0 {
		target = history[0].ID
	}
	if target == "" {
		return nil, fmt.Errorf("previous image: %w", common.ErrNotFound)
	}

	rec, source, err := v.resolve(ctx, target, models.CollectionHistory)
	if err != nil {
		return nil, err
	}
	if err := v.display(ctx, rec, displayBack); err != nil {
		return nil, err
	}
	return &Shown{Record: rec, Source: source}, nil
}

// SetQuality changes the requested quality. A pending preload was fetched at
// the old quality, so it is invalidated and, if an image is shown, restarted.
func (v *Viewer) SetQuality(ctx context.Context, q models.Quality) error {
	if err := v.prefs.SetQuality(ctx, q); err != nil {
		return err
	}
	v.preload.Invalidate()
	if v.Session().HasImage() {
		v.preload.Start()
	}
	return nil
}

// ClearCache drops every cached image and forgets the current one. Favorites
// and history keep their locators so their images can be re-fetched.
func (v *Viewer) ClearCache(ctx context.Context) error {
	done, err := v.begin()
	if err != nil {
		return err
	}
	defer done()

	v.preload.Invalidate()

	if err := v.store.Clear(ctx); err != nil {
		return err
	}
	if err := v.prefs.ClearLastImageID(ctx); err != nil {
		return err
	}

	v.mu.Lock()
	v.session.CurrentImageID = ""
	v.session.CurrentOriginLocator = ""
	v.mu.Unlock()

	v.log.Info(ctx, "image cache cleared")
	return nil
}

// ToggleFavorite adds or removes the current image from favorites and
// reports whether it is a favorite afterwards.
func (v *Viewer) ToggleFavorite(ctx context.Context) (bool, error) {
	s := v.Session()
	if !s.HasImage() {
		return false, common.ErrNoCurrentImage
	}
	return v.collections.ToggleFavorite(ctx, s.CurrentImageID, s.CurrentOriginLocator)
}

// Current returns the bytes of the displayed image, re-fetching and
// re-caching them from the origin locator when the cache lost them.
func (v *Viewer) Current(ctx context.Context) (*models.ImageRecord, error) {
	s := v.Session()
	if !s.HasImage() {
		return nil, common.ErrNoCurrentImage
	}

	rec, err := v.store.Get(ctx, s.CurrentImageID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	if s.CurrentOriginLocator == "" {
		return nil, fmt.Errorf("image %s: %w", s.CurrentImageID, common.ErrNotFound)
	}

	res, err := v.fetcher.Fetch(ctx, s.CurrentOriginLocator)
	if err != nil {
		return nil, err
	}
	rec = &models.ImageRecord{
		ID:            s.CurrentImageID,
		Data:          res.Data,
		OriginLocator: s.CurrentOriginLocator,
		CreatedAt:     v.now().UTC(),
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

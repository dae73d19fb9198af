package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/randpic/internal/client/client"
	"github.com/dmitrijs2005/randpic/internal/client/preload"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/images"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/metadata"
)

// fakeFetcher numbers its calls from 1 and returns "img-<n>" fetched from
// "http://img.test/<n>.jpg". Calls registered with hold block until released.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	locators []string
	held     map[int]chan struct{}
	entered  chan int
	err      error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{held: map[int]chan struct{}{}, entered: make(chan int, 64)}
}

func (f *fakeFetcher) hold(n int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.held[n] = ch
	return ch
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) Locators() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locators...)
}

func (f *fakeFetcher) Fetch(ctx context.Context, locator string) (*client.FetchResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.locators = append(f.locators, locator)
	gate := f.held[n]
	err := f.err
	f.mu.Unlock()

	select {
	case f.entered <- n:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &client.FetchResult{
		Data:    []byte(fmt.Sprintf("img-%d", n)),
		Locator: fmt.Sprintf("http://img.test/%d.jpg", n),
	}, nil
}

func (f *fakeFetcher) waitEntered(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.entered:
			if got == n {
				return
			}
		case <-deadline:
			t.Fatalf("fetch call %d never started", n)
		}
	}
}

type settled struct {
	token preload.Token
	state preload.State
}

type harness struct {
	db          *sql.DB
	kv          metadata.Repository
	store       images.Repository
	fetcher     *fakeFetcher
	collections *Collections
	prefs       *Preferences
	viewer      *Viewer
	settled     chan settled
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "randpic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:      db,
		kv:      metadata.NewSQLiteRepository(db),
		store:   images.NewSQLiteRepository(db),
		fetcher: newFakeFetcher(),
		settled: make(chan settled, 64),
	}
	h.collections = NewCollections(h.kv)
	h.prefs = NewPreferences(h.kv)
	h.viewer = h.newViewer(t)
	return h
}

// newViewer builds a viewer over the harness state; used to simulate a
// process restart.
func (h *harness) newViewer(t *testing.T) *Viewer {
	t.Helper()
	endpoint, err := client.NewEndpoint("http://api.test/random")
	require.NoError(t, err)

	v := NewViewer(ViewerDeps{
		Fetcher:     h.fetcher,
		Endpoint:    endpoint,
		Store:       h.store,
		Collections: h.collections,
		Preferences: h.prefs,
		PreloadOptions: []preload.Option{
			preload.WithOnSettled(func(tok preload.Token, s preload.State) {
				h.settled <- settled{tok, s}
			}),
		},
	})
	t.Cleanup(v.Close)
	return v
}

func (h *harness) waitSettled(t *testing.T) settled {
	t.Helper()
	select {
	case s := <-h.settled:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("preload did not settle")
		return settled{}
	}
}

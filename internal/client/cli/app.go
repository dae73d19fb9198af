package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/dmitrijs2005/randpic/internal/client/client"
	"github.com/dmitrijs2005/randpic/internal/client/config"
	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/randpic/internal/client/services"
	"github.com/dmitrijs2005/randpic/internal/filex"
	"github.com/dmitrijs2005/randpic/internal/logging"
)

// newClipboard is replaced in tests.
var newClipboard = services.SystemClipboard

type App struct {
	config  *config.Config
	dataDir string
	log     logging.Logger

	db      *sql.DB
	kv      metadata.Repository
	closers []io.Closer

	fetcher     *client.HTTPFetcher
	viewer      *services.Viewer
	collections *services.Collections
	prefs       *services.Preferences
	downloader  *services.Downloader
	sharer      *services.Sharer
	gallery     *services.Gallery

	in          io.Reader
	interactive bool
}

// NewApp opens the profile in cfg.DataDir and wires every service. The caller
// must Close the App.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	endpoint, err := client.NewEndpoint(cfg.APIEndpoint)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, filepath.Join(dataDir, "randpic.db"))
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	a := &App{
		config:  cfg,
		dataDir: dataDir,
		log:     log,
		db:      db,
		in:      os.Stdin,
	}
	a.interactive = term.IsTerminal(int(os.Stdin.Fd()))

	store, closer, err := openImageStore(ctx, cfg, db, dataDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.kv = metadata.NewSQLiteRepository(db)
	a.collections = services.NewCollections(a.kv)
	a.prefs = services.NewPreferences(a.kv)

	if err := a.seedQuality(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.fetcher = client.NewHTTPFetcher(
		client.WithRetry(cfg.FetchAttempts, cfg.RetryBaseDelay),
		client.WithDecodeTimeout(cfg.DecodeTimeout),
		client.WithMaxImageSizeMB(cfg.MaxImageSizeMB),
		client.WithBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		client.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		client.WithLogger(log.With("component", "fetcher")),
	)

	a.viewer = services.NewViewer(services.ViewerDeps{
		Fetcher:     a.fetcher,
		Endpoint:    endpoint,
		Store:       store,
		Collections: a.collections,
		Preferences: a.prefs,
		Logger:      log.With("component", "viewer"),
	})
	a.downloader = services.NewDownloader(a.viewer, a.prefs)
	a.sharer = services.NewSharer(a.viewer, a.prefs, newClipboard())
	a.gallery = services.NewGallery(a.collections, store, log.With("component", "gallery"))

	return a, nil
}

// seedQuality applies the configured quality to a profile that has never
// stored settings. Later changes made with the quality command win.
func (a *App) seedQuality(ctx context.Context) error {
	var s models.Settings
	found, err := metadata.GetJSON(ctx, a.kv, metadata.KeySettings, &s)
	if err != nil || found || a.config.Quality == "" {
		return err
	}
	q, err := models.ParseQuality(a.config.Quality)
	if err != nil {
		return err
	}
	return a.prefs.SetQuality(ctx, q)
}

// Close stops preloading and releases storage.
func (a *App) Close() error {
	if a.viewer != nil {
		a.viewer.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn(context.Background(), "close failed", "error", err)
		}
	}
	if z, ok := a.log.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	return a.db.Close()
}

// Run shows the last image (or a new one) and serves commands until the input
// ends or the user exits.
func (a *App) Run(ctx context.Context) {
	if a.interactive {
		printlnFn("randpic (type 'help' for commands)")
	}

	shown, err := a.viewer.Resume(ctx)
	if err != nil {
		a.report(err)
	} else {
		a.render(ctx, shown)
	}

	runREPL(ctx, a, a.status, a.interactive, a.in)
}

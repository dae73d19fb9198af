package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/services"
	"github.com/dmitrijs2005/randpic/internal/common"
)

const timeLayout = "2006-01-02 15:04"

// status is shown in the prompt.
func (a *App) status() string {
	if a.viewer.Session().MainLoadInFlight {
		return "(loading)"
	}
	return fmt.Sprintf("(next: %s)", a.viewer.PreloadStatus().State)
}

// report prints a foreground failure. The previous image stays on screen.
func (a *App) report(err error) {
	switch {
	case errors.Is(err, common.ErrBusy):
		printlnFn("Still loading, please wait.")
	case errors.Is(err, common.ErrNoCurrentImage):
		printlnFn("No image is shown yet; try 'next'.")
	case errors.Is(err, common.ErrNotFound):
		printlnFn("Image not found:", err)
	case errors.Is(err, common.ErrFetch):
		printlnFn("Could not load image:", err)
	default:
		printlnFn("Error:", err)
	}
}

// render prints what the image pane would show.
func (a *App) render(ctx context.Context, shown *services.Shown) {
	rec := shown.Record
	line := fmt.Sprintf("[%s] %s  %s", shown.Source, rec.ID, sizeLabel(len(rec.Data)))
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Data)); err == nil {
		line += fmt.Sprintf("  %dx%d %s", cfg.Width, cfg.Height, format)
	}
	if fav, err := a.collections.IsFavorite(ctx, rec.ID); err == nil && fav {
		line += "  ★"
	}
	printlnFn(line)
}

func sizeLabel(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (a *App) show(ctx context.Context, shown *services.Shown, err error) error {
	if err != nil {
		return err
	}
	a.render(ctx, shown)
	return nil
}

func (a *App) Next(ctx context.Context) error {
	shown, err := a.viewer.ShowNew(ctx)
	return a.show(ctx, shown, err)
}

func (a *App) Show(ctx context.Context, id, hint string) error {
	kind, err := models.ParseCollectionKind(hint)
	if err != nil {
		return err
	}
	shown, err := a.viewer.ShowByID(ctx, id, kind)
	return a.show(ctx, shown, err)
}

func (a *App) Prev(ctx context.Context) error {
	shown, err := a.viewer.Previous(ctx)
	return a.show(ctx, shown, err)
}

func (a *App) Fav(ctx context.Context) error {
	on, err := a.viewer.ToggleFavorite(ctx)
	if err != nil {
		return err
	}
	if on {
		printlnFn("Added to favorites.")
	} else {
		printlnFn("Removed from favorites.")
	}
	return nil
}

func (a *App) Unfav(ctx context.Context, id string) error {
	removed, err := a.collections.Remove(ctx, models.CollectionFavorites, id)
	if err != nil {
		return err
	}
	if !removed {
		printlnFn("Not a favorite:", id)
		return nil
	}
	printlnFn("Removed from favorites.")
	return nil
}

func (a *App) List(ctx context.Context, kind string) error {
	k, err := models.ParseCollectionKind(kind)
	if err != nil {
		return err
	}
	entries, err := a.gallery.Entries(ctx, k, false)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printlnFn("(empty)")
		return nil
	}

	current := a.viewer.Session().CurrentImageID
	for _, e := range entries {
		marks := ""
		if e.Item.ID == current {
			marks += " *"
		}
		if !e.Cached {
			marks += " (not cached)"
		}
		printlnFn(fmt.Sprintf("%s  %s%s", e.Item.AddedAt.Local().Format(timeLayout), e.Item.ID, marks))
	}
	return nil
}

func (a *App) Thumbs(ctx context.Context, kind, dir string) error {
	k, err := models.ParseCollectionKind(kind)
	if err != nil {
		return err
	}
	n, err := a.gallery.WriteThumbnails(ctx, k, dir)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Wrote %d thumbnails to %s", n, dir))
	return nil
}

func (a *App) Quality(ctx context.Context, q string) error {
	quality, err := models.ParseQuality(q)
	if err != nil {
		return err
	}
	if err := a.viewer.SetQuality(ctx, quality); err != nil {
		return err
	}
	printlnFn("Quality set to", quality)
	return nil
}

func (a *App) Theme(ctx context.Context) error {
	theme, err := a.prefs.ToggleTheme(ctx)
	if err != nil {
		return err
	}
	printlnFn("Theme:", theme)
	return nil
}

func (a *App) Download(ctx context.Context, dir string) error {
	if dir == "" {
		dir = "."
	}
	path, err := a.downloader.Download(ctx, dir)
	if err != nil {
		return err
	}
	printlnFn("Saved", path)
	return nil
}

func (a *App) Share(ctx context.Context, target string) error {
	link, err := a.sharer.Link(ctx, strings.ToLower(target))
	if err != nil {
		return err
	}
	printlnFn(link)
	return nil
}

func (a *App) Copy(ctx context.Context) error {
	link, err := a.sharer.CopyLink(ctx)
	if err != nil {
		return err
	}
	printlnFn("Copied", link)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st, err := a.prefs.Stats(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("views: %d  downloads: %d  shares: %d", st.Views, st.Downloads, st.Shares))
	return nil
}

func (a *App) Info(ctx context.Context) error {
	settings, err := a.prefs.Settings(ctx)
	if err != nil {
		return err
	}
	sess := a.viewer.Session()
	pre := a.viewer.PreloadStatus()

	current := "-"
	if sess.HasImage() {
		current = sess.CurrentImageID
	}
	printlnFn("current: ", current)
	if sess.CurrentOriginLocator != "" {
		printlnFn("source:  ", sess.CurrentOriginLocator)
	}
	printlnFn("quality: ", settings.Quality)
	printlnFn("theme:   ", settings.Theme)
	printlnFn("backend: ", a.config.CacheBackend)
	printlnFn(fmt.Sprintf("preload:  %s (token %d)", pre.State, pre.Token))
	printlnFn("api:     ", a.fetcher.BreakerState())

	entries, err := a.kv.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		updated := "-"
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Local().Format(timeLayout)
		}
		printlnFn(fmt.Sprintf("saved:    %-14s %s", e.Key, updated))
	}
	return nil
}

// ClearCache empties the image cache and loads a new image.
func (a *App) ClearCache(ctx context.Context) error {
	if err := a.viewer.ClearCache(ctx); err != nil {
		return err
	}
	printlnFn("Cache cleared.")
	return a.Next(ctx)
}

func (a *App) ClearHistory(ctx context.Context) error {
	if err := a.collections.Clear(ctx, models.CollectionHistory); err != nil {
		return err
	}
	printlnFn("History cleared.")
	return nil
}

func (a *App) ClearFavs(ctx context.Context) error {
	if err := a.collections.Clear(ctx, models.CollectionFavorites); err != nil {
		return err
	}
	printlnFn("Favorites cleared.")
	return nil
}

func (a *App) ClearStats(ctx context.Context) error {
	if err := a.prefs.ResetStats(ctx); err != nil {
		return err
	}
	printlnFn("Stats reset.")
	return nil
}

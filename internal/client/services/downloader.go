package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/dmitrijs2005/randpic/internal/filex"
)

// Downloader saves the displayed image to a local directory.
type Downloader struct {
	viewer *Viewer
	prefs  *Preferences
}

func NewDownloader(viewer *Viewer, prefs *Preferences) *Downloader {
	return &Downloader{viewer: viewer, prefs: prefs}
}

// Download writes the current image to <dir>/image_<id>.<ext> and returns the
// path.
func (d *Downloader) Download(ctx context.Context, dir string) (string, error) {
	rec, err := d.viewer.Current(ctx)
	if err != nil {
		return "", err
	}

	dir, err = filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("image_%s.%s", rec.ID, imageExt(rec.Data)))
	if err := filex.WriteFileAtomic(path, rec.Data, 0o644); err != nil {
		return "", err
	}

	if err := d.prefs.Incr(ctx, StatDownloads); err != nil {
		return path, fmt.Errorf("count download: %w", err)
	}
	return path, nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/atotto/clipboard"

	"github.com/dmitrijs2005/randpic/internal/common"
)

// ShareTitle accompanies shared links.
const ShareTitle = "发现一张超美的图片！"

// Clipboard is the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// SystemClipboard returns the OS clipboard.
func SystemClipboard() Clipboard {
	return systemClipboard{}
}

// Sharer builds share links for the displayed image.
type Sharer struct {
	viewer    *Viewer
	prefs     *Preferences
	clipboard Clipboard
}

func NewSharer(viewer *Viewer, prefs *Preferences, cb Clipboard) *Sharer {
	return &Sharer{viewer: viewer, prefs: prefs, clipboard: cb}
}

var shareTargets = map[string]string{
	"weibo": "https://service.weibo.com/share/share.php",
	"qq":    "https://connect.qq.com/widget/shareqq/index.html",
}

// Link returns the share page URL for target (weibo or qq).
func (s *Sharer) Link(ctx context.Context, target string) (string, error) {
	base, ok := shareTargets[target]
	if !ok {
		return "", fmt.Errorf("unknown share target %q", target)
	}

	sess := s.viewer.Session()
	if !sess.HasImage() {
		return "", common.ErrNoCurrentImage
	}

	q := url.Values{}
	q.Set("url", sess.CurrentOriginLocator)
	q.Set("title", ShareTitle)
	link := base + "?" + q.Encode()

	if err := s.prefs.Incr(ctx, StatShares); err != nil {
		return link, fmt.Errorf("count share: %w", err)
	}
	return link, nil
}

// CopyLink puts the origin locator of the displayed image on the clipboard.
func (s *Sharer) CopyLink(ctx context.Context) (string, error) {
	sess := s.viewer.Session()
	if !sess.HasImage() {
		return "", common.ErrNoCurrentImage
	}
	if s.clipboard == nil {
		return "", errors.New("clipboard unavailable")
	}
	if err := s.clipboard.WriteAll(sess.CurrentOriginLocator); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}

	if err := s.prefs.Incr(ctx, StatShares); err != nil {
		return sess.CurrentOriginLocator, fmt.Errorf("count share: %w", err)
	}
	return sess.CurrentOriginLocator, nil
}

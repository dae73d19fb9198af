package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/client/repositories/metadata"
)

type StatField int

const (
	StatViews StatField = iota
	StatDownloads
	StatShares
)

// Preferences persists settings, usage counters and the last shown image.
type Preferences struct {
	kv metadata.Repository
	mu sync.Mutex
}

func NewPreferences(kv metadata.Repository) *Preferences {
	return &Preferences{kv: kv}
}

func (p *Preferences) Settings(ctx context.Context) (models.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings(ctx)
}

func (p *Preferences) settings(ctx context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	if _, err := metadata.GetJSON(ctx, p.kv, metadata.KeySettings, &s); err != nil {
		return models.Settings{}, err
	}
	if s.Quality == "" {
		s.Quality = models.QualityOriginal
	}
	if s.Theme == "" {
		s.Theme = models.ThemeDark
	}
	return s, nil
}

func (p *Preferences) update(ctx context.Context, fn func(*models.Settings)) (models.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.settings(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	fn(&s)
	return s, metadata.SetJSON(ctx, p.kv, metadata.KeySettings, s)
}

func (p *Preferences) SetQuality(ctx context.Context, q models.Quality) error {
	_, err := p.update(ctx, func(s *models.Settings) { s.Quality = q })
	return err
}

func (p *Preferences) ToggleTheme(ctx context.Context) (models.Theme, error) {
	s, err := p.update(ctx, func(s *models.Settings) { s.Theme = s.Theme.Toggle() })
	return s.Theme, err
}

func (p *Preferences) Stats(ctx context.Context) (models.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var st models.Stats
	_, err := metadata.GetJSON(ctx, p.kv, metadata.KeyStats, &st)
	return st, err
}

// Incr bumps one counter by one.
func (p *Preferences) Incr(ctx context.Context, field StatField) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var st models.Stats
	if _, err := metadata.GetJSON(ctx, p.kv, metadata.KeyStats, &st); err != nil {
		return err
	}
	switch field {
	case StatViews:
		st.Views++
	case StatDownloads:
		st.Downloads++
	case StatShares:
		st.Shares++
	}
	return metadata.SetJSON(ctx, p.kv, metadata.KeyStats, st)
}

func (p *Preferences) ResetStats(ctx context.Context) error {
	return p.kv.Delete(ctx, metadata.KeyStats)
}

// LastImageID returns "" when nothing was shown yet.
func (p *Preferences) LastImageID(ctx context.Context) (string, error) {
	raw, err := p.kv.Get(ctx, metadata.KeyLastImageID)
	return string(raw), err
}

func (p *Preferences) SetLastImageID(ctx context.Context, id string) error {
	return p.kv.Set(ctx, metadata.KeyLastImageID, []byte(id))
}

func (p *Preferences) ClearLastImageID(ctx context.Context) error {
	return p.kv.Delete(ctx, metadata.KeyLastImageID)
}

package models

import "fmt"

// Quality is the image quality requested from the remote API.
type Quality string

const (
	QualityOriginal   Quality = "original"
	QualityCompressed Quality = "compressed"
)

func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityOriginal, QualityCompressed:
		return q, nil
	}
	return "", fmt.Errorf("unknown quality %q (want original or compressed)", s)
}

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Settings are the persisted user preferences.
type Settings struct {
	Theme   Theme   `json:"theme"`
	Quality Quality `json:"quality"`
}

// DefaultSettings match a fresh profile.
func DefaultSettings() Settings {
	return Settings{Theme: ThemeDark, Quality: QualityOriginal}
}

// Stats are monotonically increasing usage counters.
type Stats struct {
	Views     int64 `json:"views"`
	Downloads int64 `json:"downloads"`
	Shares    int64 `json:"shares"`
}

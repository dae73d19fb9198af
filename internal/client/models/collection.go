package models

import (
	"fmt"
	"time"
)

// CollectionKind names one of the user collections.
type CollectionKind string

const (
	CollectionFavorites CollectionKind = "favorites"
	CollectionHistory   CollectionKind = "history"

	// CollectionAny searches favorites first, then history.
	CollectionAny CollectionKind = "any"
)

// ParseCollectionKind accepts the long names and the short REPL aliases.
func ParseCollectionKind(s string) (CollectionKind, error) {
	switch s {
	case "favorites", "favs", "fav":
		return CollectionFavorites, nil
	case "history", "hist":
		return CollectionHistory, nil
	case "", "any":
		return CollectionAny, nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// CollectionItem references a cached image. The origin locator is kept so the
// image can be re-fetched after the cache is cleared.
type CollectionItem struct {
	ID            string    `json:"id"`
	OriginLocator string    `json:"url"`
	AddedAt       time.Time `json:"timestamp"`
}

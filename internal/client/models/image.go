// Package models defines the client-side data types of randpic: cached image
// records, user collections, settings, stats and the display session.
package models

import "time"

// ImageRecord is one cached image. Records are write-once: an id, once
// assigned, always maps to the same bytes and is never reused.
type ImageRecord struct {
	// ID is a freshly generated identifier, unique per fetch.
	ID string `json:"id"`

	// Data holds the raw encoded image bytes.
	Data []byte `json:"data"`

	// OriginLocator is the URL the bytes were obtained from and can be
	// re-fetched from when the cache has lost them.
	OriginLocator string `json:"origin_locator"`

	// CreatedAt is when the record was first stored (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// DisplaySession is a snapshot of what is currently shown.
type DisplaySession struct {
	CurrentImageID       string
	CurrentOriginLocator string
	MainLoadInFlight     bool
}

// HasImage reports whether an image is being displayed.
func (s DisplaySession) HasImage() bool {
	return s.CurrentImageID != ""
}

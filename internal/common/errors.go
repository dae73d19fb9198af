// Package common defines shared constants and sentinel errors used across
// the client layers of randpic. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Fetch errors (remote image API, after the retry budget is spent).
	ErrFetch         = errors.New("image fetch failed")
	ErrInvalidImage  = errors.New("invalid image payload")
	ErrDecodeTimeout = errors.New("image decode timed out")

	// Repository-level errors.
	ErrStorage  = errors.New("image storage failed")
	ErrNotFound = errors.New("not found")

	// Controller errors.
	ErrBusy           = errors.New("another image load is in progress")
	ErrNoCurrentImage = errors.New("no image is currently displayed")
)

// FetchError is returned by the blob fetcher once every attempt failed.
// Err carries the last underlying failure.
type FetchError struct {
	Locator  string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Locator, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch so callers can match any exhausted fetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// StorageError wraps a failure of an image cache backend.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("image store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("image store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

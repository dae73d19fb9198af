package client

import "errors"

// ErrNoImageURL is returned when a JSON API response names no image URL.
var ErrNoImageURL = errors.New("api response has no image url")

package common

// UserAgent identifies randpic on outbound requests to the image API.
const UserAgent = "randpic/1.0"

// Collection bounds, most-recent-first.
const (
	MaxFavorites = 100
	MaxHistory   = 50
)

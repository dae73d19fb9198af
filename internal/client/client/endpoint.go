package client

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/randpic/internal/client/models"
)

// DefaultEndpoint is the public random-image API.
const DefaultEndpoint = "https://api.jkyai.top/API/sjmtzs.php"

// Endpoint is the remote random-image API.
type Endpoint struct {
	base *url.URL
}

func NewEndpoint(raw string) (*Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q: missing host", raw)
	}
	return &Endpoint{base: u}, nil
}

// RandomURL returns <endpoint>?t=<unix-millis>&quality=<q>. The timestamp
// defeats intermediate caches so each call yields a new image.
func (e *Endpoint) RandomURL(q models.Quality, now time.Time) string {
	u := *e.base
	query := u.Query()
	query.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	query.Set("quality", string(q))
	u.RawQuery = query.Encode()
	return u.String()
}

func (e *Endpoint) String() string {
	return e.base.String()
}

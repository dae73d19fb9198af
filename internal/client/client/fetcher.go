package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	"github.com/dmitrijs2005/randpic/internal/common"
	"github.com/dmitrijs2005/randpic/internal/logging"
	"github.com/dmitrijs2005/randpic/internal/netx"
)

// Fetcher retrieves and validates a single image.
type Fetcher interface {
	// Fetch downloads the image behind locator. On success the payload has
	// been fully decoded; Locator in the result is the URL the bytes can be
	// fetched from again.
	Fetch(ctx context.Context, locator string) (*FetchResult, error)
}

type FetchResult struct {
	Data    []byte
	Locator string
	Format  string
	Width   int
	Height  int
}

const (
	DefaultFetchAttempts   = 3
	DefaultRetryBaseDelay  = 500 * time.Millisecond
	DefaultRequestTimeout  = 15 * time.Second
	DefaultDecodeTimeout   = 15 * time.Second
	DefaultMaxImageSizeMB  = 20
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// imageURLKeys are tried in order when the API answers with JSON.
var imageURLKeys = []string{"url", "data", "image", "img", "src"}

// HTTPFetcher fetches images over HTTP.
type HTTPFetcher struct {
	client        *http.Client
	attempts      int
	baseDelay     time.Duration
	decodeTimeout time.Duration
	maxBytes      int64
	userAgent     string
	breaker       *gobreaker.CircuitBreaker
	log           logging.Logger

	breakerFailures uint32
	breakerCooldown time.Duration
}

type Option func(*HTTPFetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithRetry sets the total attempt budget and the first backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(f *HTTPFetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if baseDelay > 0 {
			f.baseDelay = baseDelay
		}
	}
}

func WithDecodeTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.decodeTimeout = d }
}

func WithMaxImageSizeMB(mb int) Option {
	return func(f *HTTPFetcher) {
		if mb > 0 {
			f.maxBytes = int64(mb) << 20
		}
	}
}

// WithBreaker opens the circuit after failures consecutive failed attempts
// and probes again after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.breakerFailures = failures
		f.breakerCooldown = cooldown
	}
}

func WithLogger(l logging.Logger) Option {
	return func(f *HTTPFetcher) { f.log = l }
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:          &http.Client{Timeout: DefaultRequestTimeout},
		attempts:        DefaultFetchAttempts,
		baseDelay:       DefaultRetryBaseDelay,
		decodeTimeout:   DefaultDecodeTimeout,
		maxBytes:        DefaultMaxImageSizeMB << 20,
		userAgent:       common.UserAgent,
		log:             logging.NewNop(),
		breakerFailures: DefaultBreakerFailures,
		breakerCooldown: DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(f)
	}

	threshold := f.breakerFailures
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "image-api",
		MaxRequests: 1,
		Timeout:     f.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warn(context.Background(), "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return f
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (f *HTTPFetcher) BreakerState() string {
	return f.breaker.State().String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (*FetchResult, error) {
	attempts := 0
	var result *FetchResult

	backoff := retry.WithMaxRetries(uint64(f.attempts-1), retry.NewExponential(f.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		out, err := f.breaker.Execute(func() (interface{}, error) {
			return f.fetchOnce(ctx, locator)
		})
		if err == nil {
			result = out.(*FetchResult)
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
			return err
		}

		f.log.Debug(ctx, "fetch attempt failed", "locator", locator, "attempt", attempts, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, &common.FetchError{Locator: locator, Attempts: attempts, Err: err}
	}

	return result, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, locator string) (*FetchResult, error) {
	resp, err := netx.Download(ctx, f.client, locator, f.maxBytes, f.userAgent)
	if err != nil {
		return nil, err
	}

	body, source := resp.Body, resp.FinalURL

	if isJSON(resp.ContentType, body) {
		imageURL, err := imageURLFromJSON(body, resp.FinalURL)
		if err != nil {
			return nil, err
		}
		img, err := netx.Download(ctx, f.client, imageURL, f.maxBytes, f.userAgent)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", imageURL, err)
		}
		body, source = img.Body, img.FinalURL
	}

	decoded, err := validateImage(ctx, body, f.decodeTimeout)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		Data:    body,
		Locator: source,
		Format:  decoded.format,
		Width:   decoded.width,
		Height:  decoded.height,
	}, nil
}

func isJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return true
		}
		if strings.HasPrefix(mt, "image/") {
			return false
		}
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// imageURLFromJSON extracts the first non-empty string among imageURLKeys and
// resolves it against base.
func imageURLFromJSON(body []byte, base string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: decode json: %v", common.ErrInvalidImage, err)
	}

	for _, key := range imageURLKeys {
		s, ok := doc[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(s))
		if err != nil {
			return "", fmt.Errorf("%w: bad %s %q: %v", common.ErrInvalidImage, key, s, err)
		}
		baseURL, err := url.Parse(base)
		if err != nil {
			return ref.String(), nil
		}
		return baseURL.ResolveReference(ref).String(), nil
	}

	return "", ErrNoImageURL
}

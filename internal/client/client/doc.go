// Package client contains the remote-facing building blocks of randpic.
//
// # Overview
//
//  1. Fetcher: retrieves one image from a locator and validates it. The
//     HTTP implementation (HTTPFetcher) retries with exponential backoff
//     (sethvargo/go-retry), trips a circuit breaker after repeated failures
//     (sony/gobreaker), follows a JSON indirection when the API answers with
//     {"url": "..."} and fully decodes the payload under a timeout so a
//     corrupt or truncated image never reaches the cache.
//  2. Endpoint: builds cache-busting random-image URLs.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations): opens the
//     SQLite database and applies the embedded goose migrations.
//
// # Error Handling
//
// An exhausted fetch returns *common.FetchError, matchable with
// errors.Is(err, common.ErrFetch). Payloads that do not decode, or decode to
// a zero-sized image, fail with common.ErrInvalidImage; slow decodes with
// common.ErrDecodeTimeout. While the breaker is open attempts fail with
// gobreaker.ErrOpenState and are not retried.
//
// HTTPFetcher is safe for concurrent use.
package client

// Package images implements the persistent image cache store.
//
// A Repository maps image ids to write-once ImageRecords. Put is an
// idempotent upsert, Get returns (nil, nil) when the id is absent and Clear
// removes every record (and nothing else). Backend failures surface as
// *common.StorageError, so callers can match them with
// errors.Is(err, common.ErrStorage).
//
// Backends:
//
//   - SQLiteRepository: the images table of the local SQLite database.
//   - BoltRepository:   a bbolt file with a single "images" bucket.
//   - S3Repository:     objects under a prefix of an S3-compatible bucket.
//   - CachedRepository: an in-memory LRU in front of any of the above.
package images

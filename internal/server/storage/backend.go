// Package storage abstracts where file bytes live: the local filesystem or
// an S3-compatible object store. Callers never branch on backend type beyond
// the record's locator variant; everything else is backend-agnostic.
// Errors are values so batch operations can continue past individual
// failures and aggregate a result.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/dpavlovs/filegate/internal/server/models"
)

// ObjectInfo is the cheap metadata returned by Head, used for hydration.
// It is always re-fetched, never cached beyond one request.
type ObjectInfo struct {
	Size       int64
	ModifiedAt time.Time
}

// Backend is the object storage contract shared by the local and S3
// implementations.
type Backend interface {
	// Put stores the content under a collision-safe location derived from
	// suggestedName and returns the resulting locator and byte count.
	Put(ctx context.Context, r io.Reader, suggestedName string) (models.Locator, int64, error)

	// Get reads the full content. Used only when bytes must be transformed
	// (decrypt, zip) rather than streamed as-is.
	Get(ctx context.Context, loc models.Locator) ([]byte, error)

	// Head fetches size and modification time.
	Head(ctx context.Context, loc models.Locator) (ObjectInfo, error)

	// Replace overwrites the content at an existing locator in place, so the
	// file's derived key stays stable across encrypt/decrypt rewrites.
	Replace(ctx context.Context, loc models.Locator, r io.Reader) (int64, error)

	// Delete removes the object or file.
	Delete(ctx context.Context, loc models.Locator) error

	// PresignedURL returns a short-lived direct-download URL with an
	// attachment disposition for displayName. Local backends return
	// common.ErrNotSupported; local files are streamed by the dispatcher.
	PresignedURL(ctx context.Context, loc models.Locator, displayName string, ttl time.Duration) (string, error)
}

// Streamer is implemented by backends that can hand out a streaming reader
// for as-is delivery. The dispatcher uses it for local plain downloads so
// the whole file is never buffered in memory.
type Streamer interface {
	Open(ctx context.Context, loc models.Locator) (io.ReadCloser, ObjectInfo, error)
}

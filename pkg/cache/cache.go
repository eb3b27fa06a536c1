// Package cache provides the byte caches behind modgraph's scan and render
// stages.
//
// # Overview
//
// Running `go mod graph` and laying out a large graph with Graphviz are the
// two slow steps of a preview. Both are pure functions of their input, so
// their outputs are cached:
//
//   - Scan output, keyed by the directory and a hash of its go.mod and go.sum
//   - Rendered SVG, keyed by a hash of the DOT source and render options
//
// # Backends
//
//   - [NewNullCache]: caches nothing (the --no-cache flag)
//   - [NewFileCache]: JSON files under the user cache directory (default)
//   - [NewRedisCache]: a shared Redis server, for teams running previews
//     against the same modules
//
// # Keys
//
// A [Keyer] builds keys; [DefaultKeyer] hashes the key material with
// SHA-256. Wrap it in [NewScopedKeyer] to prefix every key, e.g. to share one
// Redis database between tools.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss returns (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Package archive persists preview view state between sessions.
//
// When a preview closes, the host asks the page to serialize its view state
// (zoom, pan, selected module). The page answers with an opaque JSON value,
// which is stored here keyed by document id. Reopening the same document
// replays it with a restore message.
//
// This package defines the [Store] interface with implementations for
// different backends:
//   - [MemoryStore]: in-process storage for tests and one-shot runs
//   - [FileStore]: JSON files in the user config directory (default)
//   - [RedisStore]: shared Redis, with expiry handled by Redis TTLs
//   - [MongoStore]: a MongoDB collection
//   - [SQLiteStore]: a single SQLite database file
//
// # Usage
//
//	store, err := archive.NewFileStore("") // ~/.config/modgraph/archives
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	a := archive.New(docID, state, archive.DefaultTTL)
//	if err := store.Save(ctx, a); err != nil {
//	    return err
//	}
//
//	a, err = store.Load(ctx, docID)
//	if a == nil {
//	    // never saved, or expired
//	}
package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an archive is kept after its last save.
const DefaultTTL = 30 * 24 * time.Hour

// Archive is the serialized view state of one document's preview.
type Archive struct {
	ID         string          `json:"id"`          // Unique per save
	DocumentID string          `json:"document_id"` // Stable document identifier
	State      json.RawMessage `json:"state"`       // Opaque value produced by the page
	SavedAt    time.Time       `json:"saved_at"`
	ExpiresAt  time.Time       `json:"expires_at"` // Zero means never
}

// New creates an archive for docID holding state. A ttl of zero never expires.
func New(docID string, state json.RawMessage, ttl time.Duration) *Archive {
	now := time.Now().UTC()
	a := &Archive{
		ID:         uuid.NewString(),
		DocumentID: docID,
		State:      state,
		SavedAt:    now,
	}
	if ttl > 0 {
		a.ExpiresAt = now.Add(ttl)
	}
	return a
}

// IsExpired returns true if the archive has expired.
func (a *Archive) IsExpired() bool {
	return !a.ExpiresAt.IsZero() && time.Now().After(a.ExpiresAt)
}

// TTL returns the remaining lifetime, or zero when the archive never expires.
func (a *Archive) TTL() time.Duration {
	if a.ExpiresAt.IsZero() {
		return 0
	}
	if d := time.Until(a.ExpiresAt); d > 0 {
		return d
	}
	return time.Millisecond
}

// Store is the interface for archive storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the archive for docID.
	// Returns nil, nil if none exists or it has expired.
	Load(ctx context.Context, docID string) (*Archive, error)

	// Save stores a, replacing any archive for the same document.
	Save(ctx context.Context, a *Archive) error

	// Delete removes the archive for docID. Deleting a missing archive is
	// not an error.
	Delete(ctx context.Context, docID string) error

	// Close releases resources held by the store.
	Close() error
}

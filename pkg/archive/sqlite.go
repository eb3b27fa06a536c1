package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS archives (
    document_id TEXT PRIMARY KEY,
    id          TEXT NOT NULL,
    state       BLOB NOT NULL,
    saved_at    INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_archives_expires ON archives(expires_at);
`

// SQLiteStore keeps archives in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the schema DDL.
func (s *SQLiteStore) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, docID string) (*Archive, error) {
	var (
		a         Archive
		state     []byte
		savedAt   int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, state, saved_at, expires_at FROM archives WHERE document_id = ?`,
		docID,
	).Scan(&a.ID, &a.DocumentID, &state, &savedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	a.State = state
	a.SavedAt = time.Unix(0, savedAt).UTC()
	if expiresAt != 0 {
		a.ExpiresAt = time.Unix(0, expiresAt).UTC()
	}
	if a.IsExpired() {
		return nil, nil
	}
	return &a, nil
}

func (s *SQLiteStore) Save(ctx context.Context, a *Archive) error {
	var expiresAt int64
	if !a.ExpiresAt.IsZero() {
		expiresAt = a.ExpiresAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archives (document_id, id, state, saved_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			id = excluded.id,
			state = excluded.state,
			saved_at = excluded.saved_at,
			expires_at = excluded.expires_at`,
		a.DocumentID, a.ID, []byte(a.State), a.SavedAt.UnixNano(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

// Cleanup removes expired archives and returns how many were deleted.
func (s *SQLiteStore) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM archives WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cleanup archives: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

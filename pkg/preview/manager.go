package preview

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/messenger"
)

// Manager is the registry of open previews, keyed by document id.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry. Unset options take their defaults.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// DocumentID returns the id of the document in dir: its absolute, cleaned
// path. dir must be an existing directory.
func DocumentID(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", dir)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", errors.Wrap(errors.ErrCodeFileNotFound, err, "%s does not exist", abs)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "stat %s", abs)
	}
	if !info.IsDir() {
		return "", errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", abs)
	}
	return abs, nil
}

// Open shows the preview of the document in dir over port.
//
// The first Open of a document creates its session: scan, initialize (or
// restore) the page, render. Opening a document that already has a live
// session moves that session to port instead, closing the page it showed
// before, and re-renders it; only one page shows a document at a time.
//
// Only an invalid dir is returned as an error. Scan and render failures are
// reported to the page and the notifier, and the session stays open.
func (m *Manager) Open(ctx context.Context, dir string, port messenger.Port) (*Session, error) {
	id, err := DocumentID(dir)
	if err != nil {
		return nil, err
	}

	for {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if !ok {
			break
		}
		m.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			_ = port.Close()
			return nil, ctx.Err()
		}
		if s.reattach(ctx, port) {
			return s, nil
		}
		// The old page went away first; start over with a fresh session.
		m.remove(id, s)
	}

	s := newSession(id, m.opts)
	m.sessions[id] = s
	m.mu.Unlock()

	go func() {
		<-s.Done()
		m.remove(id, s)
	}()

	s.start(ctx, port)
	return s, nil
}

// Get returns the live session for a document id, or nil.
func (m *Manager) Get(docID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[docID]
}

// Documents returns the ids of all live sessions, sorted.
func (m *Manager) Documents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes the session of a document and removes it from the registry.
func (m *Manager) Close(ctx context.Context, docID string) error {
	m.mu.Lock()
	s, ok := m.sessions[docID]
	delete(m.sessions, docID)
	m.mu.Unlock()

	if !ok {
		return errors.New(errors.ErrCodeDocumentNotFound, "no preview open for %s", docID)
	}
	return s.Close(ctx)
}

// CloseAll closes every session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m *Manager) remove(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] == s {
		delete(m.sessions, id)
	}
}

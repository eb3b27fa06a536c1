package archive

import (
	"context"
	"sync"
)

// MemoryStore keeps archives in a map. Contents are lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	archives map[string]Archive
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{archives: make(map[string]Archive)}
}

func (s *MemoryStore) Load(ctx context.Context, docID string) (*Archive, error) {
	s.mu.RLock()
	a, ok := s.archives[docID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if a.IsExpired() {
		_ = s.Delete(ctx, docID)
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryStore) Save(ctx context.Context, a *Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[a.DocumentID] = *a
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, docID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored archives, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archives)
}

var _ Store = (*MemoryStore)(nil)

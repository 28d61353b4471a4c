package transferlog

import (
	"sync"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	entries map[uuid.UUID]*Entry
	mu      sync.Mutex
}

// InMemoryStore implements in-memory Store.
func InMemoryStore() Store {
	return &inMemoryStore{
		entries: make(map[uuid.UUID]*Entry),
	}
}

func (s *inMemoryStore) Entry(id uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (s *inMemoryStore) Record(id uuid.UUID, entry *Entry) error {
	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *inMemoryStore) Entries() ([]*Entry, error) {
	s.mu.Lock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.Unlock()
	return sortEntries(out), nil
}

func (s *inMemoryStore) Close() error { return nil }

package actionlog

import (
	"context"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID string) ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.RequestID == requestID }), nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID string) ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.OwnerID == ownerID }), nil
}

// All returns every entry in append order.
func (s *InMemoryStore) All() []Entry {
	return s.filter(func(Entry) bool { return true })
}

func (s *InMemoryStore) filter(keep func(Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Entry{}
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

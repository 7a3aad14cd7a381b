package store

import (
	"context"
	"sync"

	"guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// InMemoryStore keeps scan results in a map keyed by id.
type InMemoryStore struct {
	mu      sync.RWMutex
	results map[id.ScanID]*models.ScanResult
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{results: make(map[id.ScanID]*models.ScanResult)}
}

func (s *InMemoryStore) Save(_ context.Context, r *models.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.results[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, scanID id.ScanID) (*models.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[scanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) CountByAction(_ context.Context) (map[models.Action]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[models.Action]int{}
	for _, r := range s.results {
		out[r.Action]++
	}
	return out, nil
}

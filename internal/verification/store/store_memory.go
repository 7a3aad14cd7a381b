package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// InMemoryStore keeps verification requests in a map keyed by id.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.VerificationID]*models.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.VerificationID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reqID id.VerificationID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// FindActiveApproval returns the latest unexpired approval for subject.
func (s *InMemoryStore) FindActiveApproval(_ context.Context, subject id.SubjectID, now time.Time) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Request
	for _, r := range s.requests {
		if r.SubjectID != subject || !r.IsActiveApproval(now) {
			continue
		}
		if latest == nil || r.ExpiresAt.After(*latest.ExpiresAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

// Update replaces the request if its stored status still equals expected.
// A new approval fails with ErrConflict while the subject holds another
// unexpired one.
func (s *InMemoryStore) Update(_ context.Context, r *models.Request, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrInvalidState
	}
	if at, ok := r.Approving(expected); ok {
		for _, other := range s.requests {
			if other.ID != r.ID && other.SubjectID == r.SubjectID && other.IsActiveApproval(at) {
				return sentinel.ErrConflict
			}
		}
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

// ListStale returns requests in status whose processing started (or, for
// pending, whose submission happened) before cutoff, oldest first.
func (s *InMemoryStore) ListStale(_ context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if r.Status != status {
			continue
		}
		if staleSince(r).Before(cutoff) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return staleSince(out[i]).Before(staleSince(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func staleSince(r *models.Request) time.Time {
	if r.Status == models.StatusProcessing && r.ProcessingStartedAt != nil {
		return *r.ProcessingStartedAt
	}
	return r.SubmittedAt
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[models.Status]int{}
	for _, r := range s.requests {
		out[r.Status]++
	}
	return out, nil
}

// InMemoryBlocklist holds blocked subjects.
type InMemoryBlocklist struct {
	mu      sync.RWMutex
	blocked map[id.SubjectID]string
}

func NewInMemoryBlocklist() *InMemoryBlocklist {
	return &InMemoryBlocklist{blocked: make(map[id.SubjectID]string)}
}

func (b *InMemoryBlocklist) Block(_ context.Context, subject id.SubjectID, reason string, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[subject] = reason
	return nil
}

func (b *InMemoryBlocklist) Unblock(_ context.Context, subject id.SubjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blocked[subject]; !ok {
		return sentinel.ErrNotFound
	}
	delete(b.blocked, subject)
	return nil
}

func (b *InMemoryBlocklist) IsBlocked(_ context.Context, subject id.SubjectID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[subject]
	return ok, nil
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// InMemoryStore keeps takedowns, counter-notices, and restorations in maps
// guarded by one lock so linked writes are atomic.
type InMemoryStore struct {
	mu           sync.RWMutex
	takedowns    map[id.TakedownID]*models.Takedown
	notices      map[id.CounterNoticeID]*models.CounterNotice
	byTakedown   map[id.TakedownID]id.CounterNoticeID
	restorations map[id.RestorationID]*models.Restoration
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		takedowns:    make(map[id.TakedownID]*models.Takedown),
		notices:      make(map[id.CounterNoticeID]*models.CounterNotice),
		byTakedown:   make(map[id.TakedownID]id.CounterNoticeID),
		restorations: make(map[id.RestorationID]*models.Restoration),
	}
}

func (s *InMemoryStore) Create(_ context.Context, t *models.Takedown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.takedowns[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.takedowns[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, takedownID id.TakedownID) (*models.Takedown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.takedowns[takedownID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

// Update replaces the takedown if its stored status still equals expected.
func (s *InMemoryStore) Update(_ context.Context, t *models.Takedown, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.takedowns[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrInvalidState
	}
	s.takedowns[t.ID] = t.Clone()
	return nil
}

// ListStale returns takedowns in status submitted before cutoff, oldest first.
func (s *InMemoryStore) ListStale(_ context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Takedown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Takedown
	for _, t := range s.takedowns {
		if t.Status == status && t.SubmittedAt.Before(cutoff) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountRejectedByEmail counts rejected takedowns filed from email.
func (s *InMemoryStore) CountRejectedByEmail(_ context.Context, email string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.takedowns {
		if t.Status == models.StatusRejected && t.Reporter.Email == email {
			n++
		}
	}
	return n, nil
}

// CreateCounterNotice stores the notice and its restoration together. A
// second notice for the same takedown is a conflict.
func (s *InMemoryStore) CreateCounterNotice(_ context.Context, cn *models.CounterNotice, r *models.Restoration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.takedowns[cn.OriginalRequestID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := s.byTakedown[cn.OriginalRequestID]; exists {
		return sentinel.ErrConflict
	}
	s.notices[cn.ID] = cn.Clone()
	s.byTakedown[cn.OriginalRequestID] = cn.ID
	s.restorations[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindCounterNotice(_ context.Context, noticeID id.CounterNoticeID) (*models.CounterNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cn, ok := s.notices[noticeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cn.Clone(), nil
}

func (s *InMemoryStore) FindRestoration(_ context.Context, restorationID id.RestorationID) (*models.Restoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restorations[restorationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) restorationFor(noticeID id.CounterNoticeID) *models.Restoration {
	for _, r := range s.restorations {
		if r.CounterNoticeID == noticeID {
			return r
		}
	}
	return nil
}

// CancelRestoration halts a scheduled restoration and marks its notice.
func (s *InMemoryStore) CancelRestoration(_ context.Context, noticeID id.CounterNoticeID, note string) (*models.Restoration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cn, ok := s.notices[noticeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r := s.restorationFor(noticeID)
	if r == nil {
		return nil, sentinel.ErrNotFound
	}
	if r.Status != models.RestorationScheduled {
		return nil, sentinel.ErrInvalidState
	}
	r.Status = models.RestorationCancelled
	r.Note = note
	cn.Status = models.CounterRestorationCancelled
	return r.Clone(), nil
}

// ListDueRestorations returns scheduled restorations due at or before now,
// earliest first.
func (s *InMemoryStore) ListDueRestorations(_ context.Context, now time.Time, limit int) ([]*models.Restoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Restoration
	for _, r := range s.restorations {
		if r.Status == models.RestorationScheduled && !r.DueAt.After(now) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CompleteRestoration marks a scheduled restoration executed and its
// notice restored.
func (s *InMemoryStore) CompleteRestoration(_ context.Context, restorationID id.RestorationID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restorations[restorationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != models.RestorationScheduled {
		return sentinel.ErrInvalidState
	}
	executed := now
	r.Status = models.RestorationExecuted
	r.ExecutedAt = &executed
	if cn, ok := s.notices[r.CounterNoticeID]; ok {
		restored := now
		cn.Status = models.CounterRestored
		cn.RestoredAt = &restored
	}
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Stats{
		ByStatus:       map[models.Status]int{},
		CounterNotices: map[models.CounterStatus]int{},
	}
	var total time.Duration
	for _, t := range s.takedowns {
		stats.ByStatus[t.Status]++
		if t.ResolvedAt != nil {
			stats.Resolved++
			total += t.ResolvedAt.Sub(t.SubmittedAt)
		}
	}
	for _, cn := range s.notices {
		stats.CounterNotices[cn.Status]++
	}
	if stats.Resolved > 0 {
		stats.AvgResolution = total / time.Duration(stats.Resolved)
	}
	return stats, nil
}

package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// InMemoryStore keeps reports in a map keyed by id.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.Report
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[id.ReportID]*models.Report)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// Update replaces the report if its stored status still equals expected.
func (s *InMemoryStore) Update(_ context.Context, r *models.Report, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.reports[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrInvalidState
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

// ListByStatus returns reports in any of statuses, highest priority first,
// then oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, statuses []models.Status, limit int) ([]*models.Report, error) {
	s.mu.RLock()
	var out []*models.Report
	for _, r := range s.reports {
		if slices.Contains(statuses, r.Status) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListStale returns reports in status submitted before cutoff, oldest first.
func (s *InMemoryStore) ListStale(_ context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Report, error) {
	s.mu.RLock()
	var out []*models.Report
	for _, r := range s.reports {
		if r.Status == status && r.SubmittedAt.Before(cutoff) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Stats{
		ByStatus:   map[models.Status]int{},
		ByCategory: map[scanmodels.ViolationType]int{},
		BySeverity: map[scanmodels.Severity]int{},
	}
	var total time.Duration
	for _, r := range s.reports {
		stats.ByStatus[r.Status]++
		stats.ByCategory[r.Category]++
		stats.BySeverity[r.Severity]++
		if r.ResolvedAt != nil {
			stats.Resolved++
			total += r.ResolvedAt.Sub(r.SubmittedAt)
		}
	}
	if stats.Resolved > 0 {
		stats.AvgResolution = total / time.Duration(stats.Resolved)
	}
	return stats, nil
}

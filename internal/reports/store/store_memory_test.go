package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func report(status models.Status, priority models.Priority, age time.Duration) *models.Report {
	return &models.Report{
		ID:          id.NewReportID(),
		ReporterID:  "reporter",
		ContentID:   "content",
		Category:    scanmodels.ViolationOther,
		Severity:    scanmodels.SeverityLow,
		Priority:    priority,
		Status:      status,
		Evidence:    []string{},
		SubmittedAt: base.Add(-age),
	}
}

func TestInMemoryStoreUpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	r := report(models.StatusPending, models.PriorityLow, 0)
	require.NoError(t, s.Create(ctx, r))
	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	next := r.Clone()
	next.Status = models.StatusUnderReview
	require.NoError(t, s.Update(ctx, next, models.StatusPending))
	assert.ErrorIs(t, s.Update(ctx, next, models.StatusPending), sentinel.ErrInvalidState)

	missing := report(models.StatusPending, models.PriorityLow, 0)
	assert.ErrorIs(t, s.Update(ctx, missing, models.StatusPending), sentinel.ErrNotFound)

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, got.Status)
}

func TestInMemoryStoreQueueOrder(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	oldLow := report(models.StatusUnderReview, models.PriorityLow, 3*time.Hour)
	newUrgent := report(models.StatusEscalated, models.PriorityUrgent, time.Minute)
	oldUrgent := report(models.StatusUnderReview, models.PriorityUrgent, time.Hour)
	done := report(models.StatusResolved, models.PriorityUrgent, 5*time.Hour)
	for _, r := range []*models.Report{oldLow, newUrgent, oldUrgent, done} {
		require.NoError(t, s.Create(ctx, r))
	}

	queue, err := s.ListByStatus(ctx, []models.Status{models.StatusUnderReview, models.StatusEscalated}, 0)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, oldUrgent.ID, queue[0].ID)
	assert.Equal(t, newUrgent.ID, queue[1].ID)
	assert.Equal(t, oldLow.ID, queue[2].ID)

	limited, err := s.ListByStatus(ctx, []models.Status{models.StatusUnderReview}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldUrgent.ID, limited[0].ID)
}

func TestInMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	resolved := report(models.StatusResolved, models.PriorityLow, 2*time.Hour)
	at := resolved.SubmittedAt.Add(time.Hour)
	resolved.ResolvedAt = &at
	require.NoError(t, s.Create(ctx, resolved))
	require.NoError(t, s.Create(ctx, report(models.StatusPending, models.PriorityLow, 0)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus[models.StatusResolved])
	assert.Equal(t, 2, stats.ByCategory[scanmodels.ViolationOther])
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, time.Hour, stats.AvgResolution)

	stale, err := s.ListStale(ctx, models.StatusPending, base.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/reports/models"
	"guardian/internal/reports/store"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "reports"))
}

func (s *PostgresStoreSuite) newReport(priority models.Priority, status models.Status, submitted time.Time) *models.Report {
	return &models.Report{
		ID:          id.NewReportID(),
		ReporterID:  "reporter-1",
		Anonymous:   true,
		ContentID:   "content-1",
		Category:    scanmodels.ViolationHateSpeech,
		Severity:    scanmodels.SeverityHigh,
		Priority:    priority,
		Reason:      "slurs",
		Description: "repeated slurs in the caption",
		Evidence:    []string{"screenshot-1"},
		Status:      status,
		SubmittedAt: submitted,
	}
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := s.newReport(models.PriorityHigh, models.StatusPending, now)
	s.Require().NoError(s.store.Create(ctx, r))

	next := r.Clone()
	next.Status = models.StatusResolved
	next.ContentOwnerID = "owner-1"
	next.Actions.ContentRemoved = true
	next.AutomatedConfidence = 0.95
	resolved := now.Add(time.Minute)
	next.ResolvedAt = &resolved
	s.Require().NoError(s.store.Update(ctx, next, models.StatusPending))
	s.ErrorIs(s.store.Update(ctx, next, models.StatusPending), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, got.Status)
	s.True(got.Actions.ContentRemoved)
	s.Equal("owner-1", got.ContentOwnerID)
	s.Equal([]string{"screenshot-1"}, got.Evidence)
	s.True(got.ResolvedAt.Equal(resolved))

	stats, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.Resolved)
	s.Equal(time.Minute, stats.AvgResolution.Round(time.Second))
}

func (s *PostgresStoreSuite) TestQueueOrder() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	low := s.newReport(models.PriorityLow, models.StatusUnderReview, now.Add(-time.Hour))
	urgent := s.newReport(models.PriorityUrgent, models.StatusEscalated, now)
	s.Require().NoError(s.store.Create(ctx, low))
	s.Require().NoError(s.store.Create(ctx, urgent))

	queue, err := s.store.ListByStatus(ctx, []models.Status{models.StatusUnderReview, models.StatusEscalated}, 10)
	s.Require().NoError(err)
	s.Require().Len(queue, 2)
	s.Equal(urgent.ID, queue[0].ID)
	s.Equal(low.ID, queue[1].ID)
}

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/verification/models"
	"guardian/internal/verification/store"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *store.PostgresStore
	blocklist *store.PostgresBlocklist
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
	s.blocklist = store.NewPostgresBlocklist(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_requests", "blocked_subjects"))
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := &models.Request{
		ID:          id.NewVerificationID(),
		SubjectID:   "pg-subject",
		Method:      models.MethodDocumentScan,
		Status:      models.StatusPending,
		Priority:    models.PriorityNormal,
		Fields:      models.UserFields{FullName: "Ada", Email: "ada@example.com", Country: "US", DateOfBirth: "1990-01-01"},
		Data:        models.Data{DocumentNumber: "AB123456"},
		SubmittedAt: now,
	}
	s.Require().NoError(s.store.Create(ctx, r))

	next := r.Clone()
	next.Status = models.StatusApproved
	expires := now.Add(time.Hour)
	next.ExpiresAt = &expires
	next.ResolvedAt = &now
	next.Result = &models.Result{Verified: true, Age: 36, Confidence: 0.95, RiskScore: 3, Flags: []string{}}
	s.Require().NoError(s.store.Update(ctx, next, models.StatusPending))
	s.ErrorIs(s.store.Update(ctx, next, models.StatusPending), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Equal("AB123456", got.Data.DocumentNumber)
	s.Require().NotNil(got.Result)
	s.InDelta(0.95, got.Result.Confidence, 1e-9)

	active, err := s.store.FindActiveApproval(ctx, "pg-subject", now)
	s.Require().NoError(err)
	s.Equal(r.ID, active.ID)

	_, err = s.store.FindActiveApproval(ctx, "pg-subject", expires)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Run("a second approval for the subject conflicts", func() {
		other := &models.Request{
			ID:          id.NewVerificationID(),
			SubjectID:   "pg-subject",
			Method:      models.MethodBiometric,
			Status:      models.StatusProcessing,
			Priority:    models.PriorityNormal,
			SubmittedAt: now,
		}
		s.Require().NoError(s.store.Create(ctx, other))

		approved := other.Clone()
		approved.Status = models.StatusApproved
		approved.ResolvedAt = &now
		approved.ExpiresAt = &expires
		s.ErrorIs(s.store.Update(ctx, approved, models.StatusProcessing), sentinel.ErrConflict)

		got, err := s.store.FindByID(ctx, other.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusProcessing, got.Status)
	})
}

func (s *PostgresStoreSuite) TestBlocklist() {
	ctx := context.Background()
	s.Require().NoError(s.blocklist.Block(ctx, "pg-blocked", "fraud", time.Now()))
	s.Require().NoError(s.blocklist.Block(ctx, "pg-blocked", "fraud again", time.Now()))

	blocked, err := s.blocklist.IsBlocked(ctx, "pg-blocked")
	s.Require().NoError(err)
	s.True(blocked)

	s.Require().NoError(s.blocklist.Unblock(ctx, "pg-blocked"))
	s.ErrorIs(s.blocklist.Unblock(ctx, "pg-blocked"), sentinel.ErrNotFound)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newRequest(subject string, status models.Status) *models.Request {
	r := &models.Request{
		ID:          id.NewVerificationID(),
		SubjectID:   id.SubjectID(subject),
		Method:      models.MethodBiometric,
		Status:      status,
		Priority:    models.PriorityNormal,
		SubmittedAt: s.now,
	}
	s.Require().NoError(s.store.Create(s.ctx, r))
	return r
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	r := s.newRequest("subject-1", models.StatusPending)

	got, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.SubjectID, got.SubjectID)

	got.Status = models.StatusRejected
	again, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, again.Status, "reads return copies")

	s.ErrorIs(s.store.Create(s.ctx, r), sentinel.ErrConflict)
	_, err = s.store.FindByID(s.ctx, id.NewVerificationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateComparesStatus() {
	r := s.newRequest("subject-2", models.StatusPending)

	next := r.Clone()
	next.Status = models.StatusProcessing
	s.Require().NoError(s.store.Update(s.ctx, next, models.StatusPending))

	stale := r.Clone()
	stale.Status = models.StatusApproved
	s.ErrorIs(s.store.Update(s.ctx, stale, models.StatusPending), sentinel.ErrInvalidState)

	missing := r.Clone()
	missing.ID = id.NewVerificationID()
	s.ErrorIs(s.store.Update(s.ctx, missing, models.StatusPending), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindActiveApproval() {
	expired := s.now.Add(-time.Minute)
	old := s.newRequest("subject-3", models.StatusApproved)
	old.ExpiresAt = &expired
	s.Require().NoError(s.store.Update(s.ctx, old, models.StatusApproved))

	_, err := s.store.FindActiveApproval(s.ctx, "subject-3", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	live := s.now.Add(time.Hour)
	current := s.newRequest("subject-3", models.StatusApproved)
	current.ExpiresAt = &live
	s.Require().NoError(s.store.Update(s.ctx, current, models.StatusApproved))

	got, err := s.store.FindActiveApproval(s.ctx, "subject-3", s.now)
	s.Require().NoError(err)
	s.Equal(current.ID, got.ID)
}

func (s *InMemoryStoreSuite) TestUpdateRejectsSecondActiveApproval() {
	live := s.now.Add(time.Hour)
	first := s.newRequest("subject-9", models.StatusProcessing)
	second := s.newRequest("subject-9", models.StatusProcessing)

	approve := func(r *models.Request) *models.Request {
		next := r.Clone()
		next.Status = models.StatusApproved
		next.ResolvedAt = &s.now
		next.ExpiresAt = &live
		return next
	}
	s.Require().NoError(s.store.Update(s.ctx, approve(first), models.StatusProcessing))
	s.ErrorIs(s.store.Update(s.ctx, approve(second), models.StatusProcessing), sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessing, got.Status)

	rejected := second.Clone()
	rejected.Status = models.StatusRejected
	s.NoError(s.store.Update(s.ctx, rejected, models.StatusProcessing))
}

func (s *InMemoryStoreSuite) TestListStale() {
	started := s.now.Add(-time.Hour)
	first := s.newRequest("subject-4", models.StatusProcessing)
	first.ProcessingStartedAt = &started
	s.Require().NoError(s.store.Update(s.ctx, first, models.StatusProcessing))

	recent := s.now
	second := s.newRequest("subject-5", models.StatusProcessing)
	second.ProcessingStartedAt = &recent
	s.Require().NoError(s.store.Update(s.ctx, second, models.StatusProcessing))

	stale, err := s.store.ListStale(s.ctx, models.StatusProcessing, s.now.Add(-time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal(first.ID, stale[0].ID)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[models.StatusProcessing])
}

func (s *InMemoryStoreSuite) TestBlocklist() {
	b := NewInMemoryBlocklist()
	s.Require().NoError(b.Block(s.ctx, "subject-6", "fraud", s.now))

	blocked, err := b.IsBlocked(s.ctx, "subject-6")
	s.Require().NoError(err)
	s.True(blocked)

	s.Require().NoError(b.Unblock(s.ctx, "subject-6"))
	blocked, err = b.IsBlocked(s.ctx, "subject-6")
	s.Require().NoError(err)
	s.False(blocked)
	s.ErrorIs(b.Unblock(s.ctx, "subject-6"), sentinel.ErrNotFound)
}

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"guardian/internal/ledger/models"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) violation(subject models.Subject, key string) models.Violation {
	return models.Violation{
		Subject:        subject,
		Source:         models.SourceReport,
		ReferenceID:    key,
		Action:         "content_removed",
		IdempotencyKey: key,
		RecordedAt:     s.now,
	}
}

func (s *InMemoryStoreSuite) TestIncrement() {
	owner := models.User("owner-1")

	s.Run("first increment creates the record", func() {
		out, err := s.store.Increment(s.ctx, s.violation(owner, "r-1"), 3)
		s.Require().NoError(err)
		s.Equal(1, out.Record.ViolationCount)
		s.Equal(models.StatusActive, out.Record.Status)
		s.False(out.Crossed)
		s.Require().NotNil(out.Record.FirstViolationAt)
		s.Equal(s.now, *out.Record.FirstViolationAt)
	})

	s.Run("repeated key is a duplicate", func() {
		out, err := s.store.Increment(s.ctx, s.violation(owner, "r-1"), 3)
		s.Require().NoError(err)
		s.True(out.Duplicate)
		s.Equal(1, out.Record.ViolationCount)
	})

	s.Run("third distinct key crosses the threshold once", func() {
		_, err := s.store.Increment(s.ctx, s.violation(owner, "r-2"), 3)
		s.Require().NoError(err)
		out, err := s.store.Increment(s.ctx, s.violation(owner, "r-3"), 3)
		s.Require().NoError(err)
		s.True(out.Crossed)
		s.Equal(models.StatusSuspended, out.Record.Status)

		out, err = s.store.Increment(s.ctx, s.violation(owner, "r-4"), 3)
		s.Require().NoError(err)
		s.False(out.Crossed)
		s.Equal(4, out.Record.ViolationCount)
	})
}

func (s *InMemoryStoreSuite) TestFindReturnsCopies() {
	subject := models.Content("c-1")
	_, err := s.store.Increment(s.ctx, s.violation(subject, "k"), 3)
	s.Require().NoError(err)

	first, err := s.store.Find(s.ctx, subject)
	s.Require().NoError(err)
	first.ViolationCount = 99
	first.History[0].Action = "tampered"

	second, err := s.store.Find(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal(1, second.ViolationCount)
	s.Equal("content_removed", second.History[0].Action)
}

func (s *InMemoryStoreSuite) TestFindMissing() {
	_, err := s.store.Find(s.ctx, models.User("nobody"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestResetKeepsHistory() {
	subject := models.User("u-reset")
	for i := range 3 {
		_, err := s.store.Increment(s.ctx, s.violation(subject, fmt.Sprintf("k-%d", i)), 3)
		s.Require().NoError(err)
	}

	record, err := s.store.Reset(s.ctx, subject, models.HistoryEntry{
		Source: models.SourceAdmin, Action: "ledger_reset", IdempotencyKey: "reset-1", RecordedAt: s.now,
	})
	s.Require().NoError(err)
	s.Equal(0, record.ViolationCount)
	s.Equal(models.StatusActive, record.Status)
	s.Len(record.History, 4)

	_, err = s.store.Reset(s.ctx, models.User("unknown"), models.HistoryEntry{IdempotencyKey: "x"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func TestInMemoryStoreConcurrentIncrements(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	subject := models.User("busy-owner")

	result := testutil.RunConcurrent(50, func(idx int) error {
		_, err := st.Increment(ctx, models.Violation{
			Subject:        subject,
			Source:         models.SourceReport,
			ReferenceID:    fmt.Sprintf("report-%d", idx),
			IdempotencyKey: fmt.Sprintf("report-%d", idx),
			RecordedAt:     time.Now(),
		}, 3)
		return err
	})
	require.Equal(t, int32(50), result.Successes)

	record, err := st.Find(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 50, record.ViolationCount)
	assert.Len(t, record.History, 50)
}

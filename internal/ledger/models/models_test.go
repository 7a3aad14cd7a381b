package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "guardian/pkg/domain-errors"
)

func TestApplyCrossesThresholdOnce(t *testing.T) {
	r := NewRecord(User("owner-1"))
	at := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	crossed := []bool{}
	for i := range 4 {
		crossed = append(crossed, r.Apply(Violation{Source: SourceReport, IdempotencyKey: string(rune('a' + i)), RecordedAt: at.Add(time.Duration(i) * time.Hour)}, 3))
	}

	assert.Equal(t, []bool{false, false, true, false}, crossed)
	assert.Equal(t, 4, r.ViolationCount)
	assert.Equal(t, StatusSuspended, r.Status)
	assert.Equal(t, at, *r.FirstViolationAt)
	assert.Equal(t, at.Add(3*time.Hour), *r.LastViolationAt)
}

func TestApplyNeverDowngradesBan(t *testing.T) {
	r := NewRecord(User("owner-1"))
	r.Status = StatusBanned
	assert.False(t, r.Apply(Violation{IdempotencyKey: "k"}, 1))
	assert.Equal(t, StatusBanned, r.Status)
}

func TestMoveTo(t *testing.T) {
	r := NewRecord(User("owner-1"))
	assert.True(t, r.MoveTo(StatusSuspended, HistoryEntry{IdempotencyKey: "s1"}))
	assert.False(t, r.MoveTo(StatusSuspended, HistoryEntry{IdempotencyKey: "s2"}), "same status is a no-op")
	assert.True(t, r.MoveTo(StatusBanned, HistoryEntry{IdempotencyKey: "b1"}))
	assert.False(t, r.MoveTo(StatusSuspended, HistoryEntry{IdempotencyKey: "s3"}))
	assert.Equal(t, StatusBanned, r.Status)
	assert.Len(t, r.History, 2)
}

func TestCloneIsDeep(t *testing.T) {
	r := NewRecord(Content("c-1"))
	r.Apply(Violation{IdempotencyKey: "k", RecordedAt: time.Now()}, 3)
	c := r.Clone()
	c.History[0].Action = "mutated"
	*c.FirstViolationAt = time.Time{}
	assert.NotEqual(t, "mutated", r.History[0].Action)
	assert.False(t, r.FirstViolationAt.IsZero())
}

func TestSubjectValidate(t *testing.T) {
	err := Subject{Kind: "org"}.Validate()
	assert.ElementsMatch(t, []string{"subject.kind", "subject.id"}, dErrors.FieldNames(err))
	assert.NoError(t, User("u").Validate())
}

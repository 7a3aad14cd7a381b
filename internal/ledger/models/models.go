package models

import (
	"time"

	dErrors "guardian/pkg/domain-errors"
)

// SubjectKind distinguishes accounts from individual content items.
type SubjectKind string

const (
	SubjectUser    SubjectKind = "user"
	SubjectContent SubjectKind = "content"
)

func (k SubjectKind) IsValid() bool {
	return k == SubjectUser || k == SubjectContent
}

// Subject is the ledger key.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func User(id string) Subject    { return Subject{Kind: SubjectUser, ID: id} }
func Content(id string) Subject { return Subject{Kind: SubjectContent, ID: id} }

// Key is used for sharded locking and map lookups.
func (s Subject) Key() string { return string(s.Kind) + ":" + s.ID }

func (s Subject) Validate() error {
	var fields []dErrors.FieldError
	if !s.Kind.IsValid() {
		fields = append(fields, dErrors.FieldError{Field: "subject.kind", Reason: "must be one of [user content]"})
	}
	if s.ID == "" {
		fields = append(fields, dErrors.FieldError{Field: "subject.id", Reason: "required"})
	}
	if len(fields) > 0 {
		return dErrors.NewValidation(fields...)
	}
	return nil
}

// Status of an offender. Suspended is reached automatically at the
// escalation threshold; banned only by an explicit action.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

// Source names the workflow that reported a violation.
type Source string

const (
	SourceReport   Source = "report"
	SourceTakedown Source = "takedown"
	SourceScan     Source = "scan"
	SourceAdmin    Source = "admin"
)

// HistoryEntry is one counted violation or administrative change.
type HistoryEntry struct {
	Source         Source    `json:"source"`
	ReferenceID    string    `json:"reference_id"`
	Action         string    `json:"action"`
	IdempotencyKey string    `json:"idempotency_key"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Record is the RepeatOffenderRecord for one subject.
type Record struct {
	Subject          Subject        `json:"subject"`
	ViolationCount   int            `json:"violation_count"`
	FirstViolationAt *time.Time     `json:"first_violation_at,omitempty"`
	LastViolationAt  *time.Time     `json:"last_violation_at,omitempty"`
	Status           Status         `json:"status"`
	History          []HistoryEntry `json:"history"`
}

// NewRecord is the implicit state of a subject with no history.
func NewRecord(subject Subject) *Record {
	return &Record{Subject: subject, Status: StatusActive, History: []HistoryEntry{}}
}

// Clone returns a deep copy so callers never share history slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.History = append([]HistoryEntry{}, r.History...)
	if r.FirstViolationAt != nil {
		t := *r.FirstViolationAt
		out.FirstViolationAt = &t
	}
	if r.LastViolationAt != nil {
		t := *r.LastViolationAt
		out.LastViolationAt = &t
	}
	return &out
}

// HasKey reports whether the idempotency key was already applied.
func (r *Record) HasKey(key string) bool {
	for _, h := range r.History {
		if h.IdempotencyKey == key {
			return true
		}
	}
	return false
}

// Apply counts one violation and returns true if it crossed threshold,
// moving an active subject to suspended.
func (r *Record) Apply(v Violation, threshold int) bool {
	at := v.RecordedAt
	r.ViolationCount++
	if r.FirstViolationAt == nil {
		r.FirstViolationAt = &at
	}
	r.LastViolationAt = &at
	r.History = append(r.History, HistoryEntry{
		Source:         v.Source,
		ReferenceID:    v.ReferenceID,
		Action:         v.Action,
		IdempotencyKey: v.IdempotencyKey,
		RecordedAt:     at,
	})
	if r.Status == StatusActive && r.ViolationCount >= threshold {
		r.Status = StatusSuspended
		return true
	}
	return false
}

// MoveTo applies a status change and records entry. A banned subject, or one
// already in status, is left untouched and MoveTo returns false.
func (r *Record) MoveTo(status Status, entry HistoryEntry) bool {
	if r.Status == status || r.Status == StatusBanned {
		return false
	}
	r.Status = status
	r.History = append(r.History, entry)
	return true
}

// Violation is an input to the ledger.
type Violation struct {
	Subject        Subject
	Source         Source
	ReferenceID    string
	Action         string
	IdempotencyKey string
	RecordedAt     time.Time
}

// StatusChange reports what a status update did. Changed is false when the
// guard in MoveTo kept the record as it was.
type StatusChange struct {
	Record  *Record
	From    Status
	Changed bool
}

// Outcome reports what an increment did.
type Outcome struct {
	Record *Record `json:"record"`
	// Crossed is true only on the increment that moved the subject to suspended.
	Crossed bool `json:"crossed"`
	// Duplicate is true when the idempotency key was already counted.
	Duplicate bool `json:"duplicate"`
}

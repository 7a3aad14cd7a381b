// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "guardian/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ReportID where a TakedownID is expected.
// All identifiers are UUIDv7: a time-ordered prefix followed by random bits.
type (
	VerificationID  uuid.UUID
	ScanID          uuid.UUID
	ReportID        uuid.UUID
	TakedownID      uuid.UUID
	CounterNoticeID uuid.UUID
	RestorationID   uuid.UUID
	ActionID        uuid.UUID
)

// SubjectID identifies a user or piece of content owned by the host platform.
// The engine never issues these; they arrive from callers as opaque strings.
type SubjectID string

func NewVerificationID() VerificationID   { return VerificationID(newV7()) }
func NewScanID() ScanID                   { return ScanID(newV7()) }
func NewReportID() ReportID               { return ReportID(newV7()) }
func NewTakedownID() TakedownID           { return TakedownID(newV7()) }
func NewCounterNoticeID() CounterNoticeID { return CounterNoticeID(newV7()) }
func NewRestorationID() RestorationID     { return RestorationID(newV7()) }
func NewActionID() ActionID               { return ActionID(newV7()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseVerificationID(s string) (VerificationID, error) {
	id, err := parseUUID(s, "verification ID")
	return VerificationID(id), err
}

func ParseScanID(s string) (ScanID, error) {
	id, err := parseUUID(s, "scan ID")
	return ScanID(id), err
}

func ParseReportID(s string) (ReportID, error) {
	id, err := parseUUID(s, "report ID")
	return ReportID(id), err
}

func ParseTakedownID(s string) (TakedownID, error) {
	id, err := parseUUID(s, "takedown ID")
	return TakedownID(id), err
}

func ParseCounterNoticeID(s string) (CounterNoticeID, error) {
	id, err := parseUUID(s, "counter-notice ID")
	return CounterNoticeID(id), err
}

func ParseSubjectID(s string) (SubjectID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "subject ID cannot be empty")
	}
	return SubjectID(s), nil
}

func (id VerificationID) String() string  { return uuid.UUID(id).String() }
func (id ScanID) String() string          { return uuid.UUID(id).String() }
func (id ReportID) String() string        { return uuid.UUID(id).String() }
func (id TakedownID) String() string      { return uuid.UUID(id).String() }
func (id CounterNoticeID) String() string { return uuid.UUID(id).String() }
func (id RestorationID) String() string   { return uuid.UUID(id).String() }
func (id ActionID) String() string        { return uuid.UUID(id).String() }
func (id SubjectID) String() string       { return string(id) }

func (id VerificationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TakedownID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CounterNoticeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool       { return id == "" }

// MarshalText and UnmarshalText let typed IDs travel as plain UUID strings.

func (id VerificationID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id ScanID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ReportID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id TakedownID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id CounterNoticeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id RestorationID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ActionID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *VerificationID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ScanID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReportID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TakedownID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CounterNoticeID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RestorationID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActionID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }

func newV7() uuid.UUID {
	// NewV7 only fails when the random source does.
	return uuid.Must(uuid.NewV7())
}

// parseUUID is the shared validation logic.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	return id, nil
}

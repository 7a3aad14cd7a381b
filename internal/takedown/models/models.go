package models

import (
	"slices"
	"time"

	id "guardian/pkg/domain"
)

type Status string

// A takedown moves pending → under_review → approved | rejected, and an
// approved takedown becomes resolved once the content is removed.
const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusResolved    Status = "resolved"
)

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusResolved
}

// Resolution reasons recorded on rejected and resolved takedowns.
const (
	ReasonContentNotFound     = "content_not_found"
	ReasonAlreadyRemoved      = "content_already_removed"
	ReasonReporterInformation = "reporter_information_insufficient"
	ReasonSuspectedFalseClaim = "suspected_false_claim"
	ReasonContentIDMatch      = "content_id_match"
	ReasonDefaultDecision     = "default_decision"
	ReasonLegalReview         = "legal_review"
)

type Reporter struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// Attestations are the four statements a valid notice must affirm.
type Attestations struct {
	GoodFaith        bool `json:"good_faith"`
	Accuracy         bool `json:"accuracy"`
	PerjuryStatement bool `json:"perjury_statement"`
	Authorization    bool `json:"authorization"`
}

// Takedown is a copyright takedown notice and its processing state.
type Takedown struct {
	ID               id.TakedownID `json:"id"`
	Reporter         Reporter      `json:"reporter"`
	CopyrightOwner   string        `json:"copyright_owner"`
	WorkTitle        string        `json:"work_title"`
	WorkDescription  string        `json:"work_description,omitempty"`
	ContentID        string        `json:"content_id"`
	ContentOwnerID   string        `json:"content_owner_id,omitempty"`
	Evidence         []string      `json:"evidence"`
	Attestations     Attestations  `json:"attestations"`
	Signature        string        `json:"signature,omitempty"`
	Status           Status        `json:"status"`
	ResolutionReason string        `json:"resolution_reason,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	ContentIDMatch   bool          `json:"content_id_match"`
	MatchReference   string        `json:"match_reference,omitempty"`
	ReviewerID       string        `json:"reviewer_id,omitempty"`
	SubmittedAt      time.Time     `json:"submitted_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
}

func (t *Takedown) Clone() *Takedown {
	if t == nil {
		return nil
	}
	out := *t
	out.Evidence = slices.Clone(t.Evidence)
	if t.ResolvedAt != nil {
		r := *t.ResolvedAt
		out.ResolvedAt = &r
	}
	return &out
}

// Decidable reports whether legal staff may approve or reject now. Pending
// takedowns qualify only after a processing failure.
func (t *Takedown) Decidable() bool {
	switch t.Status {
	case StatusUnderReview:
		return true
	case StatusPending:
		return t.FailureReason != ""
	}
	return false
}

type CounterStatus string

const (
	CounterRestorationScheduled CounterStatus = "restoration_scheduled"
	CounterRestored             CounterStatus = "restored"
	CounterRestorationCancelled CounterStatus = "restoration_cancelled"
)

type Respondent struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

type CounterAttestations struct {
	GoodFaith             bool `json:"good_faith"`
	PerjuryStatement      bool `json:"perjury_statement"`
	ConsentToJurisdiction bool `json:"consent_to_jurisdiction"`
}

// CounterNotice disputes exactly one resolved takedown.
type CounterNotice struct {
	ID                id.CounterNoticeID  `json:"id"`
	OriginalRequestID id.TakedownID       `json:"original_request_id"`
	Respondent        Respondent          `json:"respondent"`
	Statement         string              `json:"statement"`
	Attestations      CounterAttestations `json:"attestations"`
	Signature         string              `json:"signature,omitempty"`
	Status            CounterStatus       `json:"status"`
	RestoreAt         time.Time           `json:"restore_at"`
	RestoredAt        *time.Time          `json:"restored_at,omitempty"`
	SubmittedAt       time.Time           `json:"submitted_at"`
}

func (c *CounterNotice) Clone() *CounterNotice {
	if c == nil {
		return nil
	}
	out := *c
	if c.RestoredAt != nil {
		r := *c.RestoredAt
		out.RestoredAt = &r
	}
	return &out
}

type RestorationStatus string

const (
	RestorationScheduled RestorationStatus = "scheduled"
	RestorationExecuted  RestorationStatus = "executed"
	RestorationCancelled RestorationStatus = "cancelled"
)

// Restoration puts removed content back once the counter-notice waiting
// period has passed, unless the claimant files suit first.
type Restoration struct {
	ID              id.RestorationID   `json:"id"`
	TakedownID      id.TakedownID      `json:"takedown_id"`
	CounterNoticeID id.CounterNoticeID `json:"counter_notice_id"`
	ContentID       string             `json:"content_id"`
	DueAt           time.Time          `json:"due_at"`
	Status          RestorationStatus  `json:"status"`
	ExecutedAt      *time.Time         `json:"executed_at,omitempty"`
	Note            string             `json:"note,omitempty"`
}

func (r *Restoration) Clone() *Restoration {
	if r == nil {
		return nil
	}
	out := *r
	if r.ExecutedAt != nil {
		e := *r.ExecutedAt
		out.ExecutedAt = &e
	}
	return &out
}

// AddBusinessDays returns t moved forward by days weekdays. Weekends are
// skipped; public holidays are not modeled.
func AddBusinessDays(t time.Time, days int) time.Time {
	for days > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days--
		}
	}
	return t
}

// Stats aggregates takedowns for the dashboard.
type Stats struct {
	ByStatus       map[Status]int        `json:"by_status"`
	CounterNotices map[CounterStatus]int `json:"counter_notices"`
	Resolved       int                   `json:"resolved"`
	AvgResolution  time.Duration         `json:"-"`
}

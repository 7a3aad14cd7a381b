package models

import (
	"slices"
	"time"

	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusEscalated   Status = "escalated"
	StatusResolved    Status = "resolved"
	StatusDismissed   Status = "dismissed"
)

func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for the review queue; urgent is highest.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// PriorityFor derives a report's priority from what the reporter declared.
func PriorityFor(category scanmodels.ViolationType, severity scanmodels.Severity) Priority {
	switch {
	case category == scanmodels.ViolationChildExploitation || severity == scanmodels.SeverityCritical:
		return PriorityUrgent
	case severity == scanmodels.SeverityHigh:
		return PriorityHigh
	case severity == scanmodels.SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Actions records what was done about a report.
type Actions struct {
	ContentRemoved   bool   `json:"content_removed"`
	UserWarned       bool   `json:"user_warned"`
	UserSuspended    bool   `json:"user_suspended"`
	UserBanned       bool   `json:"user_banned"`
	EscalatedToLegal bool   `json:"escalated_to_legal"`
	Other            string `json:"other,omitempty"`
}

type Report struct {
	ID                  id.ReportID              `json:"id"`
	ReporterID          string                   `json:"reporter_id,omitempty"`
	Anonymous           bool                     `json:"anonymous"`
	ContentID           string                   `json:"content_id"`
	ContentOwnerID      string                   `json:"content_owner_id,omitempty"`
	Category            scanmodels.ViolationType `json:"category"`
	Severity            scanmodels.Severity      `json:"severity"`
	Priority            Priority                 `json:"priority"`
	Reason              string                   `json:"reason"`
	Description         string                   `json:"description"`
	Evidence            []string                 `json:"evidence"`
	Status              Status                   `json:"status"`
	Actions             Actions                  `json:"actions"`
	AutomatedConfidence float64                  `json:"automated_confidence"`
	FailureReason       string                   `json:"failure_reason,omitempty"`
	ReviewerID          string                   `json:"reviewer_id,omitempty"`
	ResolutionNote      string                   `json:"resolution_note,omitempty"`
	SubmittedAt         time.Time                `json:"submitted_at"`
	ResolvedAt          *time.Time               `json:"resolved_at,omitempty"`
}

func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Evidence = slices.Clone(r.Evidence)
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

// Public is the copy shown outside the engine: anonymous reporters are
// never revealed.
func (r *Report) Public() *Report {
	out := r.Clone()
	if out.Anonymous {
		out.ReporterID = ""
	}
	return out
}

// Decidable reports whether a reviewer may act on the report now.
func (r *Report) Decidable() bool {
	switch r.Status {
	case StatusUnderReview, StatusEscalated:
		return true
	case StatusPending:
		return r.FailureReason != ""
	}
	return false
}

// Action is a moderation action a reviewer or policy can take.
type Action string

const (
	ActionRemoveContent Action = "remove_content"
	ActionWarnUser      Action = "warn_user"
	ActionSuspendUser   Action = "suspend_user"
	ActionBanUser       Action = "ban_user"
	ActionEscalateLegal Action = "escalate_legal"
	ActionDismiss       Action = "dismiss"
)

// Outcome is the status an action leaves the report in.
func (a Action) Outcome() Status {
	switch a {
	case ActionEscalateLegal:
		return StatusEscalated
	case ActionDismiss:
		return StatusDismissed
	default:
		return StatusResolved
	}
}

// Counts reports whether the action counts against the owner's ledger.
func (a Action) Counts() bool {
	return a != ActionDismiss
}

// Stats aggregates reports for the dashboard.
type Stats struct {
	ByStatus      map[Status]int                   `json:"by_status"`
	ByCategory    map[scanmodels.ViolationType]int `json:"by_category"`
	BySeverity    map[scanmodels.Severity]int      `json:"by_severity"`
	Resolved      int                              `json:"resolved"`
	AvgResolution time.Duration                    `json:"-"`
}

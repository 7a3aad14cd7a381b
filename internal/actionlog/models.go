package actionlog

import (
	"time"

	id "guardian/pkg/domain"
)

// Component names the part of the engine that produced an entry.
type Component string

const (
	ComponentVerification Component = "verification"
	ComponentScanning     Component = "scanning"
	ComponentReport       Component = "report"
	ComponentTakedown     Component = "takedown"
	ComponentLedger       Component = "ledger"
)

// Entry is one state transition or executed action. Entries are never
// updated or deleted once appended.
type Entry struct {
	ID         id.ActionID `json:"id"`
	Component  Component   `json:"component"`
	RequestID  string      `json:"request_id"`
	OwnerID    string      `json:"owner_id,omitempty"`
	Action     string      `json:"action"`
	FromStatus string      `json:"from_status,omitempty"`
	ToStatus   string      `json:"to_status,omitempty"`
	Automated  bool        `json:"automated"`
	Actor      string      `json:"actor,omitempty"`
	Note       string      `json:"note,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Common action names shared by several components.
const (
	ActionSubmitted          = "submitted"
	ActionTransition         = "status_changed"
	ActionContentRemoved     = "content_removed"
	ActionContentRestored    = "content_restored"
	ActionUserWarned         = "user_warned"
	ActionUserSuspended      = "user_suspended"
	ActionUserBanned         = "user_banned"
	ActionEscalatedToLegal   = "escalated_to_legal"
	ActionDismissed          = "dismissed"
	ActionProcessingFailed   = "processing_failed"
	ActionRestorationPlanned = "restoration_scheduled"
	ActionRestorationHalted  = "restoration_cancelled"
	ActionLedgerReset        = "ledger_reset"
)

package models

import (
	"math"
	"slices"
	"time"

	id "guardian/pkg/domain"
)

// Method is how a subject proves their age.
type Method string

const (
	MethodDocumentScan      Method = "document_scan"
	MethodPaymentInstrument Method = "payment_instrument"
	MethodGovernmentID      Method = "government_id"
	MethodBiometric         Method = "biometric"
	MethodBlockchain        Method = "blockchain"
	MethodManualReview      Method = "manual_review"
)

var AllMethods = []Method{
	MethodDocumentScan, MethodPaymentInstrument, MethodGovernmentID,
	MethodBiometric, MethodBlockchain, MethodManualReview,
}

func (m Method) IsValid() bool {
	return slices.Contains(AllMethods, m)
}

// IsStrong is false only for payment instruments, which prove card
// ownership rather than identity and get the short approval TTL.
func (m Method) IsStrong() bool {
	return m != MethodPaymentInstrument
}

// Priority orders the manual review queue.
func (m Method) Priority() Priority {
	switch m {
	case MethodManualReview:
		return PriorityHigh
	case MethodPaymentInstrument, MethodBlockchain:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	// StatusExpired is never stored; it is reported for approvals past expiry.
	StatusExpired Status = "expired"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Flags raised while verifying.
const (
	FlagUnderage              = "underage"
	FlagInvalidDocumentFormat = "invalid_document_format"
	FlagLowConfidence         = "low_confidence"
	FlagReviewerDecision      = "reviewer_decision"
)

// UserFields are the identity fields every method requires.
type UserFields struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	DateOfBirth string `json:"date_of_birth"`
}

// BirthDate parses DateOfBirth; callers validate it first.
func (f UserFields) BirthDate() (time.Time, error) {
	return time.Parse(time.DateOnly, f.DateOfBirth)
}

// Data is method-specific verification material.
type Data struct {
	DocumentType    string `json:"document_type,omitempty"`
	DocumentNumber  string `json:"document_number,omitempty"`
	CardToken       string `json:"card_token,omitempty"`
	CardLast4       string `json:"card_last4,omitempty"`
	IDNumber        string `json:"id_number,omitempty"`
	BiometricSample string `json:"biometric_sample,omitempty"`
	WalletAddress   string `json:"wallet_address,omitempty"`
	Attestation     string `json:"attestation,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Result is the outcome of a completed check.
type Result struct {
	Verified   bool     `json:"verified"`
	Age        int      `json:"age"`
	Confidence float64  `json:"confidence"`
	RiskScore  int      `json:"risk_score"`
	Flags      []string `json:"flags"`
}

// Request is a VerificationRequest.
type Request struct {
	ID                  id.VerificationID `json:"id"`
	SubjectID           id.SubjectID      `json:"subject_id"`
	Method              Method            `json:"method"`
	Status              Status            `json:"status"`
	Priority            Priority          `json:"priority"`
	Fields              UserFields        `json:"fields"`
	Data                Data              `json:"data"`
	SubmittedAt         time.Time         `json:"submitted_at"`
	ProcessingStartedAt *time.Time        `json:"processing_started_at,omitempty"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	Attempts            int               `json:"attempts"`
	FailureReason       string            `json:"failure_reason,omitempty"`
	Result              *Result           `json:"result,omitempty"`
	ReviewerID          string            `json:"reviewer_id,omitempty"`
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	out := *r
	if r.Result != nil {
		res := *r.Result
		res.Flags = append([]string(nil), r.Result.Flags...)
		out.Result = &res
	}
	out.ProcessingStartedAt = clonePtr(r.ProcessingStartedAt)
	out.ResolvedAt = clonePtr(r.ResolvedAt)
	out.ExpiresAt = clonePtr(r.ExpiresAt)
	return &out
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// IsActiveApproval reports an approval that has not yet expired.
func (r *Request) IsActiveApproval(now time.Time) bool {
	return r.Status == StatusApproved && r.ExpiresAt != nil && now.Before(*r.ExpiresAt)
}

// Approving reports whether writing r over a stored request in status from
// grants a new approval, and the time the approval is checked against.
func (r *Request) Approving(from Status) (time.Time, bool) {
	if r.Status != StatusApproved || from == StatusApproved {
		return time.Time{}, false
	}
	if r.ResolvedAt != nil {
		return *r.ResolvedAt, true
	}
	return time.Now().UTC(), true
}

// View returns the request as callers see it at now: approvals past
// their expiry read as expired.
func (r *Request) View(now time.Time) *Request {
	out := r.Clone()
	if r.Status == StatusApproved && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		out.Status = StatusExpired
	}
	return out
}

// RiskScore is round((1-confidence)*60), plus 40 when underage, plus 10
// for every other flag, clamped to 0..100.
func RiskScore(confidence float64, flags []string) int {
	score := int(math.Round((1 - confidence) * 60))
	for _, f := range flags {
		if f == FlagUnderage {
			score += 40
		} else {
			score += 10
		}
	}
	return min(max(score, 0), 100)
}

// SubjectStatus answers "is this subject verified right now".
type SubjectStatus struct {
	SubjectID id.SubjectID       `json:"subject_id"`
	Verified  bool               `json:"verified"`
	RequestID *id.VerificationID `json:"request_id,omitempty"`
	Method    Method             `json:"method,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

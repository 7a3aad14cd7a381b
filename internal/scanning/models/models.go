package models

import (
	"slices"
	"strings"
	"time"

	"guardian/internal/content"
	id "guardian/pkg/domain"
	"guardian/pkg/validation"
)

// ViolationType is the shared taxonomy; reports use it as their category.
type ViolationType string

const (
	ViolationChildExploitation ViolationType = "child_exploitation"
	ViolationIllegalContent    ViolationType = "illegal_content"
	ViolationCopyright         ViolationType = "copyright"
	ViolationHateSpeech        ViolationType = "hate_speech"
	ViolationViolence          ViolationType = "violence"
	ViolationOther             ViolationType = "other"
)

var AllViolationTypes = []ViolationType{
	ViolationChildExploitation, ViolationIllegalContent, ViolationCopyright,
	ViolationHateSpeech, ViolationViolence, ViolationOther,
}

func (t ViolationType) IsValid() bool {
	return slices.Contains(AllViolationTypes, t)
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	return s.rank() > 0
}

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// SeverityFor maps a classifier score to a severity. Child exploitation is
// always critical.
func SeverityFor(t ViolationType, confidence float64) Severity {
	switch {
	case t == ViolationChildExploitation:
		return SeverityCritical
	case confidence >= 0.9:
		return SeverityHigh
	case confidence >= 0.7:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Source names the analysis that found a violation.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceMetadata   Source = "metadata"
	SourceHashMatch  Source = "hash_match"
	SourcePipeline   Source = "pipeline"
)

type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionFlag       Action = "flag"
	ActionQuarantine Action = "quarantine"
)

type Violation struct {
	Type       ViolationType `json:"type"`
	Severity   Severity      `json:"severity"`
	Confidence float64       `json:"confidence"`
	Evidence   []string      `json:"evidence"`
	Source     Source        `json:"source"`
}

// ScanResult is the persisted outcome of one scan.
type ScanResult struct {
	ID                  id.ScanID    `json:"id"`
	ContentID           string       `json:"content_id"`
	ContentType         content.Type `json:"content_type"`
	Violations          []Violation  `json:"violations"`
	Confidence          float64      `json:"confidence"`
	RequiresHumanReview bool         `json:"requires_human_review"`
	Action              Action       `json:"action"`
	Failure             string       `json:"failure,omitempty"`
	ScannedAt           time.Time    `json:"scanned_at"`
}

// Failed reports whether the pipeline failed closed.
func (r *ScanResult) Failed() bool {
	return r.Failure != ""
}

// Highest returns the most severe violation, or nil.
func (r *ScanResult) Highest() *Violation {
	var top *Violation
	for i := range r.Violations {
		v := &r.Violations[i]
		if top == nil || v.Severity.rank() > top.Severity.rank() ||
			(v.Severity == top.Severity && v.Confidence > top.Confidence) {
			top = v
		}
	}
	return top
}

// Decide fills Confidence, Action, and RequiresHumanReview from the
// violations. Priority: critical rejects; high or aggregate above 0.8
// quarantines; anything else found flags.
func (r *ScanResult) Decide() {
	r.Confidence = 0
	severe := false
	critical := false
	for _, v := range r.Violations {
		r.Confidence = max(r.Confidence, v.Confidence)
		switch v.Severity {
		case SeverityCritical:
			critical = true
			severe = true
		case SeverityHigh:
			severe = true
		}
	}

	switch {
	case r.Failed():
		r.Action = ActionQuarantine
	case critical:
		r.Action = ActionReject
	case severe || r.Confidence > 0.8:
		r.Action = ActionQuarantine
	case len(r.Violations) > 0:
		r.Action = ActionFlag
	default:
		r.Action = ActionApprove
	}
	r.RequiresHumanReview = r.Failed() || (r.Action != ActionApprove && severe)
}

// Clone returns a deep copy.
func (r *ScanResult) Clone() *ScanResult {
	out := *r
	out.Violations = slices.Clone(r.Violations)
	for i := range out.Violations {
		out.Violations[i].Evidence = slices.Clone(r.Violations[i].Evidence)
	}
	return &out
}

// ScanRequest is the body of POST /v1/scans. The payload is base64 in JSON.
type ScanRequest struct {
	ContentID string           `json:"content_id" validate:"notblank,max=256"`
	Type      content.Type     `json:"content_type" validate:"required,oneof=image video text"`
	Payload   []byte           `json:"payload" validate:"required"`
	Metadata  content.Metadata `json:"metadata"`
}

func (r *ScanRequest) Normalize() {
	r.ContentID = strings.TrimSpace(r.ContentID)
	r.Type = content.Type(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.Metadata.Title = strings.TrimSpace(r.Metadata.Title)
}

func (r *ScanRequest) Validate() error {
	return validation.Validate(r)
}

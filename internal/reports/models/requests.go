package models

import (
	"strings"

	scanmodels "guardian/internal/scanning/models"
	dErrors "guardian/pkg/domain-errors"
	strutil "guardian/pkg/platform/strings"
	"guardian/pkg/validation"
)

// SubmitRequest is the body of POST /v1/reports. Category defaults to
// other and severity to low.
type SubmitRequest struct {
	ReporterID  string                   `json:"reporter_id" validate:"notblank,max=256"`
	Anonymous   bool                     `json:"anonymous"`
	ContentID   string                   `json:"content_id" validate:"notblank,max=256"`
	Category    scanmodels.ViolationType `json:"category"`
	Severity    scanmodels.Severity      `json:"severity"`
	Reason      string                   `json:"reason" validate:"notblank,max=256"`
	Description string                   `json:"description" validate:"notblank,max=10000"`
	Evidence    []string                 `json:"evidence" validate:"max=25"`
}

func (r *SubmitRequest) Normalize() {
	r.ReporterID = strings.TrimSpace(r.ReporterID)
	r.ContentID = strings.TrimSpace(r.ContentID)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = scanmodels.ViolationType(strings.ToLower(strings.TrimSpace(string(r.Category))))
	r.Severity = scanmodels.Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
	if r.Category == "" {
		r.Category = scanmodels.ViolationOther
	}
	if r.Severity == "" {
		r.Severity = scanmodels.SeverityLow
	}
	r.Evidence = strutil.DedupeAndTrim(r.Evidence)
}

func (r *SubmitRequest) Validate() error {
	var extra []dErrors.FieldError
	if !r.Category.IsValid() {
		extra = append(extra, dErrors.FieldError{Field: "category", Reason: "unknown violation category"})
	}
	if !r.Severity.IsValid() {
		extra = append(extra, dErrors.FieldError{Field: "severity", Reason: "must be one of [low medium high critical]"})
	}
	return validation.Validate(r, extra...)
}

// DecisionRequest is a reviewer's action on a report.
type DecisionRequest struct {
	Action Action `json:"action" validate:"required,oneof=remove_content warn_user suspend_user ban_user escalate_legal dismiss"`
	Note   string `json:"note" validate:"max=2000"`
}

func (r *DecisionRequest) Normalize() {
	r.Action = Action(strings.ToLower(strings.TrimSpace(string(r.Action))))
	r.Note = strings.TrimSpace(r.Note)
}

func (r *DecisionRequest) Validate() error {
	return validation.Validate(r)
}

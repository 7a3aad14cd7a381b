package models

import (
	"strings"

	strutil "guardian/pkg/platform/strings"
	"guardian/pkg/validation"
)

// SubmitRequest is the body of POST /v1/takedowns.
type SubmitRequest struct {
	Reporter        ReporterFields     `json:"reporter"`
	CopyrightOwner  string             `json:"copyright_owner" validate:"notblank,max=256"`
	WorkTitle       string             `json:"work_title" validate:"notblank,max=512"`
	WorkDescription string             `json:"work_description" validate:"max=10000"`
	ContentID       string             `json:"content_id" validate:"notblank,max=256"`
	Evidence        []string           `json:"evidence" validate:"max=25"`
	Attestations    AttestationsFields `json:"attestations"`
	Signature       string             `json:"signature" validate:"max=256"`
}

type ReporterFields struct {
	Name    string `json:"name" validate:"notblank,max=256"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"notblank,max=1024"`
	Phone   string `json:"phone" validate:"max=64"`
	Company string `json:"company" validate:"max=256"`
}

type AttestationsFields struct {
	GoodFaith        bool `json:"good_faith" validate:"attested"`
	Accuracy         bool `json:"accuracy" validate:"attested"`
	PerjuryStatement bool `json:"perjury_statement" validate:"attested"`
	Authorization    bool `json:"authorization" validate:"attested"`
}

func (r *SubmitRequest) Normalize() {
	r.Reporter.Name = strings.TrimSpace(r.Reporter.Name)
	r.Reporter.Email = strings.ToLower(strings.TrimSpace(r.Reporter.Email))
	r.Reporter.Address = strings.TrimSpace(r.Reporter.Address)
	r.Reporter.Phone = strings.TrimSpace(r.Reporter.Phone)
	r.Reporter.Company = strings.TrimSpace(r.Reporter.Company)
	r.CopyrightOwner = strings.TrimSpace(r.CopyrightOwner)
	r.WorkTitle = strings.TrimSpace(r.WorkTitle)
	r.WorkDescription = strings.TrimSpace(r.WorkDescription)
	r.ContentID = strings.TrimSpace(r.ContentID)
	r.Signature = strings.TrimSpace(r.Signature)
	r.Evidence = strutil.DedupeAndTrim(r.Evidence)
}

func (r *SubmitRequest) Validate() error {
	return validation.Validate(r)
}

// CounterNoticeRequest is the body of POST /v1/takedowns/{id}/counter-notices.
type CounterNoticeRequest struct {
	Respondent   RespondentFields          `json:"respondent"`
	Statement    string                    `json:"statement" validate:"notblank,max=10000"`
	Attestations CounterAttestationsFields `json:"attestations"`
	Signature    string                    `json:"signature" validate:"max=256"`
}

type RespondentFields struct {
	Name    string `json:"name" validate:"notblank,max=256"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"notblank,max=1024"`
	Phone   string `json:"phone" validate:"max=64"`
}

type CounterAttestationsFields struct {
	GoodFaith             bool `json:"good_faith" validate:"attested"`
	PerjuryStatement      bool `json:"perjury_statement" validate:"attested"`
	ConsentToJurisdiction bool `json:"consent_to_jurisdiction" validate:"attested"`
}

func (r *CounterNoticeRequest) Normalize() {
	r.Respondent.Name = strings.TrimSpace(r.Respondent.Name)
	r.Respondent.Email = strings.ToLower(strings.TrimSpace(r.Respondent.Email))
	r.Respondent.Address = strings.TrimSpace(r.Respondent.Address)
	r.Respondent.Phone = strings.TrimSpace(r.Respondent.Phone)
	r.Statement = strings.TrimSpace(r.Statement)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *CounterNoticeRequest) Validate() error {
	return validation.Validate(r)
}

// DecisionRequest is legal staff's verdict on a takedown under review.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Note     string `json:"note" validate:"max=2000"`
}

func (r *DecisionRequest) Normalize() {
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	r.Note = strings.TrimSpace(r.Note)
}

func (r *DecisionRequest) Validate() error {
	return validation.Validate(r)
}

// CancelRestorationRequest records why a scheduled restoration was halted,
// typically that the claimant filed suit.
type CancelRestorationRequest struct {
	Reason string `json:"reason" validate:"notblank,max=2000"`
}

func (r *CancelRestorationRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *CancelRestorationRequest) Validate() error {
	return validation.Validate(r)
}

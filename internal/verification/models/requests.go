package models

import (
	"strings"
	"time"

	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/validation"
)

// SubmitRequest is the body of POST /v1/verifications.
type SubmitRequest struct {
	SubjectID string       `json:"subject_id" validate:"notblank,max=256"`
	Method    Method       `json:"method" validate:"required,oneof=document_scan payment_instrument government_id biometric blockchain manual_review"`
	Fields    SubmitFields `json:"fields"`
	Data      Data         `json:"data"`
}

// SubmitFields mirrors UserFields with validation tags.
type SubmitFields struct {
	FullName    string `json:"full_name" validate:"notblank,max=256"`
	Email       string `json:"email" validate:"required,email"`
	Address     string `json:"address" validate:"notblank,max=1024"`
	Country     string `json:"country" validate:"required,iso3166_1_alpha2"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
}

func (r *SubmitRequest) Normalize() {
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	r.Method = Method(strings.ToLower(strings.TrimSpace(string(r.Method))))
	r.Fields.FullName = strings.TrimSpace(r.Fields.FullName)
	r.Fields.Email = strings.ToLower(strings.TrimSpace(r.Fields.Email))
	r.Fields.Address = strings.TrimSpace(r.Fields.Address)
	r.Fields.Country = strings.ToUpper(strings.TrimSpace(r.Fields.Country))
	r.Fields.DateOfBirth = strings.TrimSpace(r.Fields.DateOfBirth)
	r.Data.DocumentNumber = strings.TrimSpace(r.Data.DocumentNumber)
	r.Data.IDNumber = strings.TrimSpace(r.Data.IDNumber)
}

// Validate reports every invalid field at once, including method-specific
// data that is missing.
func (r *SubmitRequest) Validate() error {
	return r.validate(nil)
}

// ValidateAt is Validate plus the checks relative to now: the birth date
// must not be in the future.
func (r *SubmitRequest) ValidateAt(now time.Time) error {
	var extra []dErrors.FieldError
	if dob, err := time.Parse(time.DateOnly, r.Fields.DateOfBirth); err == nil && dob.After(now) {
		extra = append(extra, dErrors.FieldError{Field: "fields.date_of_birth", Reason: "must be in the past"})
	}
	return r.validate(extra)
}

func (r *SubmitRequest) validate(extra []dErrors.FieldError) error {
	if field := requiredDataField(r.Method); field != "" && dataValue(r.Data, field) == "" {
		extra = append(extra, dErrors.FieldError{Field: "data." + field, Reason: "required"})
	}
	return validation.Validate(r, extra...)
}

func (r *SubmitRequest) UserFields() UserFields {
	return UserFields(r.Fields)
}

func requiredDataField(m Method) string {
	switch m {
	case MethodDocumentScan:
		return "document_number"
	case MethodPaymentInstrument:
		return "card_token"
	case MethodGovernmentID:
		return "id_number"
	case MethodBiometric:
		return "biometric_sample"
	case MethodBlockchain:
		return "wallet_address"
	default:
		return ""
	}
}

func dataValue(d Data, field string) string {
	switch field {
	case "document_number":
		return strings.TrimSpace(d.DocumentNumber)
	case "card_token":
		return strings.TrimSpace(d.CardToken)
	case "id_number":
		return strings.TrimSpace(d.IDNumber)
	case "biometric_sample":
		return strings.TrimSpace(d.BiometricSample)
	case "wallet_address":
		return strings.TrimSpace(d.WalletAddress)
	}
	return ""
}

// DecisionRequest is a reviewer's verdict on a pending request.
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

// BlockRequest is the optional body of POST /v1/blocklist/{subject_id}.
type BlockRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (r *BlockRequest) Validate() error {
	return validation.Validate(r)
}

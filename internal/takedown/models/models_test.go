package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardian/pkg/domain-errors"
)

func TestAddBusinessDays(t *testing.T) {
	// 2026-05-08 is a Friday.
	friday := time.Date(2026, 5, 8, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		from time.Time
		days int
		want time.Time
	}{
		{"zero days", friday, 0, friday},
		{"friday plus one is monday", friday, 1, time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC)},
		{"ten business days span two weekends", friday, 10, time.Date(2026, 5, 22, 15, 0, 0, 0, time.UTC)},
		{"saturday plus one is monday", friday.AddDate(0, 0, 1), 1, time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddBusinessDays(tc.from, tc.days))
		})
	}
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		Reporter: ReporterFields{
			Name:    "Rights Holder",
			Email:   " Legal@Studio.Example ",
			Address: "100 Studio Way, Burbank",
		},
		CopyrightOwner: "Studio Pictures",
		WorkTitle:      "The Feature",
		ContentID:      "content-1",
		Attestations: AttestationsFields{
			GoodFaith: true, Accuracy: true, PerjuryStatement: true, Authorization: true,
		},
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := validSubmit()
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, "legal@studio.example", req.Reporter.Email)
	})

	t.Run("missing perjury statement is named", func(t *testing.T) {
		req := validSubmit()
		req.Attestations.PerjuryStatement = false
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, []string{"attestations.perjury_statement"}, dErrors.FieldNames(err))
	})

	t.Run("every violation is listed", func(t *testing.T) {
		req := &SubmitRequest{Reporter: ReporterFields{Email: "not-an-email"}}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.ElementsMatch(t, []string{
			"reporter.name", "reporter.email", "reporter.address",
			"copyright_owner", "work_title", "content_id",
			"attestations.good_faith", "attestations.accuracy",
			"attestations.perjury_statement", "attestations.authorization",
		}, dErrors.FieldNames(err))
	})
}

func TestCounterNoticeRequestValidate(t *testing.T) {
	req := &CounterNoticeRequest{
		Respondent:   RespondentFields{Name: "Uploader", Email: "up@example.com", Address: "1 Side Street"},
		Statement:    "The clip is my own recording.",
		Attestations: CounterAttestationsFields{GoodFaith: true, PerjuryStatement: true},
	}
	req.Normalize()
	err := req.Validate()
	require.Error(t, err)
	assert.Equal(t, []string{"attestations.consent_to_jurisdiction"}, dErrors.FieldNames(err))
}

func TestDecidable(t *testing.T) {
	assert.True(t, (&Takedown{Status: StatusUnderReview}).Decidable())
	assert.True(t, (&Takedown{Status: StatusPending, FailureReason: "catalog timed out"}).Decidable())
	assert.False(t, (&Takedown{Status: StatusPending}).Decidable())
	assert.False(t, (&Takedown{Status: StatusResolved}).Decidable())
	assert.False(t, (&Takedown{Status: StatusRejected}).Decidable())
}

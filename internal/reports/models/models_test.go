package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanmodels "guardian/internal/scanning/models"
	dErrors "guardian/pkg/domain-errors"
)

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		category scanmodels.ViolationType
		severity scanmodels.Severity
		want     Priority
	}{
		{scanmodels.ViolationChildExploitation, scanmodels.SeverityLow, PriorityUrgent},
		{scanmodels.ViolationViolence, scanmodels.SeverityCritical, PriorityUrgent},
		{scanmodels.ViolationViolence, scanmodels.SeverityHigh, PriorityHigh},
		{scanmodels.ViolationHateSpeech, scanmodels.SeverityMedium, PriorityMedium},
		{scanmodels.ViolationOther, scanmodels.SeverityLow, PriorityLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PriorityFor(tc.category, tc.severity), "%s/%s", tc.category, tc.severity)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	t.Run("lists every missing field", func(t *testing.T) {
		req := &SubmitRequest{Category: "spam", Severity: "extreme"}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.ElementsMatch(t, []string{
			"reporter_id", "content_id", "reason", "description", "category", "severity",
		}, dErrors.FieldNames(err))
	})

	t.Run("defaults category and severity", func(t *testing.T) {
		req := &SubmitRequest{
			ReporterID: " r-1 ", ContentID: "c-1", Reason: "spam", Description: "lots of links",
			Evidence: []string{" link ", "link", ""},
		}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, scanmodels.ViolationOther, req.Category)
		assert.Equal(t, scanmodels.SeverityLow, req.Severity)
		assert.Equal(t, "r-1", req.ReporterID)
		assert.Equal(t, []string{"link"}, req.Evidence)
	})
}

func TestReportVisibility(t *testing.T) {
	r := &Report{ReporterID: "reporter-1", Anonymous: true, Evidence: []string{"x"}}
	assert.Empty(t, r.Public().ReporterID)
	assert.Equal(t, "reporter-1", r.ReporterID)

	r.Anonymous = false
	assert.Equal(t, "reporter-1", r.Public().ReporterID)
}

func TestDecidable(t *testing.T) {
	assert.True(t, (&Report{Status: StatusUnderReview}).Decidable())
	assert.True(t, (&Report{Status: StatusEscalated}).Decidable())
	assert.True(t, (&Report{Status: StatusPending, FailureReason: "catalog timed out"}).Decidable())
	assert.False(t, (&Report{Status: StatusPending}).Decidable())
	assert.False(t, (&Report{Status: StatusResolved}).Decidable())
	assert.False(t, (&Report{Status: StatusDismissed}).Decidable())
}

func TestActionOutcomes(t *testing.T) {
	assert.Equal(t, StatusEscalated, ActionEscalateLegal.Outcome())
	assert.Equal(t, StatusDismissed, ActionDismiss.Outcome())
	assert.Equal(t, StatusResolved, ActionBanUser.Outcome())
	assert.False(t, ActionDismiss.Counts())
	assert.True(t, ActionWarnUser.Counts())
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardian/pkg/domain-errors"
)

type attestations struct {
	GoodFaith bool `json:"good_faith" validate:"attested"`
	Perjury   bool `json:"perjury_statement" validate:"attested"`
}

type sample struct {
	Name         string       `json:"name" validate:"notblank"`
	Email        string       `json:"email" validate:"required,email"`
	Country      string       `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Attestations attestations `json:"attestations"`
}

func TestValidateCollectsEveryField(t *testing.T) {
	err := Validate(sample{Email: "nope", Country: "XX", Attestations: attestations{GoodFaith: true}})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.ElementsMatch(t,
		[]string{"name", "email", "country", "attestations.perjury_statement"},
		dErrors.FieldNames(err),
	)
}

func TestValidateMergesExtraViolations(t *testing.T) {
	valid := sample{Name: "A", Email: "a@example.com", Attestations: attestations{GoodFaith: true, Perjury: true}}
	assert.NoError(t, Validate(valid))

	err := Validate(valid, dErrors.FieldError{Field: "date_of_birth", Reason: "must be in the past"})
	assert.Equal(t, []string{"date_of_birth"}, dErrors.FieldNames(err))
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardian/pkg/domain-errors"
)

func TestNewIDsAreTimeOrderedV7(t *testing.T) {
	a := NewReportID()
	b := NewReportID()
	assert.Equal(t, uuid.Version(7), uuid.UUID(a).Version())
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a.String()[:8], b.String()[:8])
}

func TestParseReportID(t *testing.T) {
	id := NewReportID()
	parsed, err := ParseReportID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseReportID("not-a-uuid")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = ParseReportID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestIDsRenderAsStringsInJSON(t *testing.T) {
	id := NewTakedownID()
	out, err := json.Marshal(struct {
		ID TakedownID `json:"id"`
	}{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(out))
}

func TestIDsDecodeFromJSON(t *testing.T) {
	id := NewVerificationID()
	var decoded struct {
		ID VerificationID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"`+id.String()+`"}`), &decoded))
	assert.Equal(t, id, decoded.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &decoded))
}

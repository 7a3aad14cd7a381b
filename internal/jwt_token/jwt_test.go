package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardian/pkg/domain-errors"
)

func newService() *JWTService {
	return NewJWTService("test-signing-key", "guardian-test", time.Hour)
}

func TestIssueAndValidate(t *testing.T) {
	svc := newService()
	token, err := svc.Issue("mod-7", []string{"reviewer"}, time.Now())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "mod-7", claims.ReviewerID)
	assert.Equal(t, []string{"reviewer"}, claims.Roles)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := newService()
	token, err := svc.Issue("mod-7", []string{"reviewer"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsForeignIssuer(t *testing.T) {
	other := NewJWTService("test-signing-key", "someone-else", time.Hour)
	token, err := other.Issue("mod-7", []string{"admin"}, time.Now())
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsAlgorithmConfusion(t *testing.T) {
	claims := ReviewerClaims{
		Roles: []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "guardian-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService().ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestIssueRequiresRoles(t *testing.T) {
	_, err := newService().Issue("mod-7", nil, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

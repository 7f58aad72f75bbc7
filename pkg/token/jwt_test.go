package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewSessionManager("secret", 1)
	sid, signed, err := m.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	claims, err := m.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, sid, claims.SessionID())
	assert.Equal(t, time.Hour, m.TTL())
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	_, signed, err := NewSessionManager("one", 1).Issue()
	require.NoError(t, err)

	_, err = NewSessionManager("two", 1).Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "sid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewSessionManager("secret", 1).Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewSessionManager("secret", 1).Verify(signed)
	assert.Error(t, err)
}

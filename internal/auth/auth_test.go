package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", 0)

	token, err := svc.Issue(42)
	require.NoError(t, err)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenService("one", time.Hour).Issue(1)
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue(7)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenLifetimeIsSevenDays(t *testing.T) {
	svc := NewTokenService("secret", 0)
	start := time.Now()
	svc.now = func() time.Time { return start }
	token, err := svc.Issue(3)
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(7*24*time.Hour - time.Minute) }
	_, err = svc.Verify(token)
	assert.NoError(t, err)

	svc.now = func() time.Time { return start.Add(7*24*time.Hour + time.Minute) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNonNumericIdentity(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()
	svc := NewTokenService("secret", time.Hour)

	for name, claims := range map[string]jwt.MapClaims{
		"string":   {"userId": "12", "exp": exp},
		"missing":  {"exp": exp},
		"fraction": {"userId": 1.5, "exp": exp},
		"zero":     {"userId": 0, "exp": exp},
		"no exp":   {"userId": 1},
	} {
		_, err := svc.Verify(sign(claims))
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestUserIDFromHeader(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, err := svc.Issue(9)
	require.NoError(t, err)

	id, err := svc.UserIDFromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), id)

	for _, header := range []string{
		"",
		token,
		"bearer " + token,
		"Bearer",
		"Bearer " + token + " extra",
		"Bearer not-a-token",
	} {
		_, err := svc.UserIDFromHeader(header)
		assert.ErrorIs(t, err, ErrUnauthorized, header)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cretpass")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cretpass", hash)
	assert.True(t, CheckPassword("s3cretpass", hash))
	assert.False(t, CheckPassword("wrongpass", hash))
}

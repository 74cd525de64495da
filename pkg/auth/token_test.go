package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
)

func newTokens(t *testing.T, issuer string) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: "secret", Issuer: issuer, ExpirationMinutes: 30})
	require.NoError(t, err)
	return tokens
}

func TestIssueThenVerify(t *testing.T) {
	tokens := newTokens(t, "poolfund")
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	raw, err := tokens.Issue(userID, now)
	require.NoError(t, err)
	claims, err := tokens.Verify(raw)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "poolfund", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.Time.Equal(now.Add(30*time.Minute)))
}

func TestVerifyRejects(t *testing.T) {
	tokens := newTokens(t, "poolfund")
	valid, err := tokens.Issue(uuid.New(), time.Now())
	require.NoError(t, err)
	expired, err := tokens.Issue(uuid.New(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	foreign, err := newTokens(t, "someone-else").Issue(uuid.New(), time.Now())
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.New()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		raw  string
		want error
	}{
		"tampered signature": {valid + "x", jwt.ErrTokenSignatureInvalid},
		"expired":            {expired, jwt.ErrTokenExpired},
		"wrong issuer":       {foreign, jwt.ErrTokenInvalidIssuer},
		"alg none":           {noneAlg, jwt.ErrTokenSignatureInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(tc.raw)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyToleratesSmallClockSkew(t *testing.T) {
	tokens := newTokens(t, "poolfund")
	raw, err := tokens.Issue(uuid.New(), time.Now().Add(-30*time.Minute-10*time.Second))
	require.NoError(t, err)
	_, err = tokens.Verify(raw)
	assert.NoError(t, err)
}

func TestIssueRequiresUser(t *testing.T) {
	_, err := newTokens(t, "poolfund").Issue(uuid.Nil, time.Now())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestNewTokensValidatesConfig(t *testing.T) {
	for _, cfg := range []config.JWTConfig{
		{Issuer: "i", ExpirationMinutes: 1},
		{Secret: "s", ExpirationMinutes: 1},
		{Secret: "s", Issuer: "i"},
	} {
		_, err := NewTokens(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

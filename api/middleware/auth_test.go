package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/auth"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveAuth(cfg config.JWTConfig, header string, next http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	Auth(cfg, nil)(next).ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	for name, header := range map[string]string{
		"missing":     "",
		"bare bearer": "Bearer   ",
		"garbage":     "Bearer invalid",
	} {
		t.Run(name, func(t *testing.T) {
			rec := serveAuth(testJWT, header, okHandler())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
		})
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	tokens, err := auth.NewTokens(testJWT)
	require.NoError(t, err)
	userID := uuid.New()
	token, err := tokens.Issue(userID, time.Now())
	require.NoError(t, err)

	for _, header := range []string{"Bearer " + token, "bearer " + token, token} {
		var captured uuid.UUID
		rec := serveAuth(testJWT, header, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			require.True(t, ok)
			captured = actor
			w.WriteHeader(http.StatusOK)
		}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, captured)
	}
}

func TestAuthFailsClosedOnBadConfig(t *testing.T) {
	rec := serveAuth(config.JWTConfig{Issuer: "issuer"}, "Bearer anything", okHandler())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestActorFromContextRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorFromContext(req.Context())
	assert.False(t, ok)

	_, ok = ActorFromContext(WithUserID(req.Context(), "not-a-uuid"))
	assert.False(t, ok)
}

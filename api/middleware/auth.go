package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/poolfund-backend/api/responses"
	"github.com/angelmondragon/poolfund-backend/pkg/auth"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

const bearerPrefix = "bearer "

// Auth verifies the bearer token and puts the caller's user id on the context.
// A JWT config that cannot verify anything fails every request closed.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens, cfgErr := auth.NewTokens(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if cfgErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cfgErr, "token verification unavailable"))
				return
			}
			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := tokens.Verify(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx = WithUserID(ctx, userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return ""
	}
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}

package votingsettings

import (
	"net/http"

	"github.com/angelmondragon/poolfund-backend/api/middleware"
	"github.com/angelmondragon/poolfund-backend/api/responses"
	"github.com/angelmondragon/poolfund-backend/api/validators"
	internalsettings "github.com/angelmondragon/poolfund-backend/internal/votingsettings"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

type toggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Get returns the pool's voting settings, falling back to defaults when the
// pool has never configured them.
func Get(svc internalsettings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settings, err := svc.Get(r.Context(), poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

// Update applies a partial settings change. Only the pool owner may call it.
func Update(svc internalsettings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
			return
		}
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalsettings.UpdateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settings, err := svc.Update(r.Context(), actor, poolID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, "voting settings updated", settings)
	}
}

func Toggle(svc internalsettings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
			return
		}
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req toggleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settings, err := svc.Toggle(r.Context(), actor, poolID, *req.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		msg := "voting disabled"
		if settings.VotingEnabled {
			msg = "voting enabled"
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msg, settings)
	}
}

package votingsettings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/api/middleware"
	internalsettings "github.com/angelmondragon/poolfund-backend/internal/votingsettings"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
)

type stubSettings struct {
	internalsettings.Service

	update func(ctx context.Context, actor, poolID uuid.UUID, input internalsettings.UpdateInput) (*models.PoolVotingSettings, error)
	toggle func(ctx context.Context, actor, poolID uuid.UUID, enabled bool) (*models.PoolVotingSettings, error)
}

func (s *stubSettings) Update(ctx context.Context, actor, poolID uuid.UUID, input internalsettings.UpdateInput) (*models.PoolVotingSettings, error) {
	return s.update(ctx, actor, poolID, input)
}

func (s *stubSettings) Toggle(ctx context.Context, actor, poolID uuid.UUID, enabled bool) (*models.PoolVotingSettings, error) {
	return s.toggle(ctx, actor, poolID, enabled)
}

func call(h http.HandlerFunc, body string, poolID uuid.UUID, actor *uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	rc := chi.NewRouteContext()
	rc.URLParams.Add("poolId", poolID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if actor != nil {
		ctx = middleware.WithUserID(ctx, actor.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestUpdatePassesPartialInput(t *testing.T) {
	actor, poolID := uuid.New(), uuid.New()
	var got internalsettings.UpdateInput
	svc := &stubSettings{update: func(_ context.Context, gotActor, gotPool uuid.UUID, input internalsettings.UpdateInput) (*models.PoolVotingSettings, error) {
		assert.Equal(t, actor, gotActor)
		assert.Equal(t, poolID, gotPool)
		got = input
		return &models.PoolVotingSettings{PoolID: gotPool, VotingThresholdPct: 60}, nil
	}}

	rec := call(Update(svc, nil), `{"votingThresholdPct":60,"votingType":"weighted_by_shares"}`, poolID, &actor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.VotingThresholdPct)
	assert.Equal(t, 60, *got.VotingThresholdPct)
	require.NotNil(t, got.VotingType)
	assert.Equal(t, enums.VotingTypeWeightedByShares, *got.VotingType)
	assert.Nil(t, got.QuorumPct)
}

func TestUpdateForbiddenForNonOwner(t *testing.T) {
	actor := uuid.New()
	svc := &stubSettings{update: func(context.Context, uuid.UUID, uuid.UUID, internalsettings.UpdateInput) (*models.PoolVotingSettings, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the pool owner can change voting settings")
	}}
	rec := call(Update(svc, nil), `{"autoApprove":true}`, uuid.New(), &actor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestToggleRequiresEnabledField(t *testing.T) {
	actor := uuid.New()
	rec := call(Toggle(&stubSettings{}, nil), `{}`, uuid.New(), &actor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleReportsState(t *testing.T) {
	actor := uuid.New()
	svc := &stubSettings{toggle: func(_ context.Context, _, poolID uuid.UUID, enabled bool) (*models.PoolVotingSettings, error) {
		return &models.PoolVotingSettings{PoolID: poolID, VotingEnabled: enabled}, nil
	}}
	rec := call(Toggle(svc, nil), `{"enabled":true}`, uuid.New(), &actor)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		ResponseMessage string `json:"response_message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "voting enabled", env.ResponseMessage)
}

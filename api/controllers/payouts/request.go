package payouts

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/api/middleware"
	"github.com/angelmondragon/poolfund-backend/api/validators"
	internalpayouts "github.com/angelmondragon/poolfund-backend/internal/payouts"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/pagination"
)

const (
	maxTextLength    = 500
	maxCommentLength = 1000
)

type createPayoutRequest struct {
	RecipientID  string          `json:"recipientId" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount" validate:"positive_amount"`
	Description  string          `json:"description" validate:"max=500"`
	EnableVoting bool            `json:"enableVoting"`
}

type updateStatusRequest struct {
	Status        string  `json:"status" validate:"required,oneof=pending pending_voting processing completed failed cancelled"`
	FailureReason *string `json:"failureReason" validate:"omitempty,max=500"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type castVoteRequest struct {
	VoteType string  `json:"voteType" validate:"required,oneof=approve reject abstain"`
	Comments *string `json:"comments" validate:"omitempty,max=1000"`
}

type startVotingRequest struct {
	DurationHours *int `json:"durationHours" validate:"omitempty,min=1,max=720"`
}

func requireActor(r *http.Request) (uuid.UUID, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	return actor, nil
}

func (req createPayoutRequest) toInput(poolID, actor uuid.UUID) internalpayouts.CreateInput {
	return internalpayouts.CreateInput{
		PoolID:       poolID,
		RecipientID:  uuid.MustParse(req.RecipientID),
		CreatedBy:    actor,
		Amount:       req.Amount,
		Description:  validators.CleanText(req.Description, maxTextLength),
		EnableVoting: req.EnableVoting,
	}
}

func (req updateStatusRequest) toInput(payoutID, actor uuid.UUID) internalpayouts.UpdateStatusInput {
	input := internalpayouts.UpdateStatusInput{
		PayoutID: payoutID,
		Actor:    actor,
		Status:   enums.PayoutStatus(req.Status),
	}
	if req.FailureReason != nil {
		reason := validators.CleanText(*req.FailureReason, maxTextLength)
		input.FailureReason = &reason
	}
	return input
}

func (req castVoteRequest) toInput(payoutID, voter uuid.UUID) internalpayouts.CastVoteInput {
	input := internalpayouts.CastVoteInput{
		PayoutID: payoutID,
		VoterID:  voter,
		VoteType: enums.VoteType(req.VoteType),
	}
	if req.Comments != nil {
		comments := validators.CleanText(*req.Comments, maxCommentLength)
		if comments != "" {
			input.Comments = &comments
		}
	}
	return input
}

func parseListParams(r *http.Request, poolID uuid.UUID) (internalpayouts.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return internalpayouts.ListParams{}, err
	}
	params := internalpayouts.ListParams{
		PoolID: poolID,
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParsePayoutStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("votingStatus")); raw != "" {
		status := enums.VotingStatus(raw)
		if !status.IsValid() {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid votingStatus filter")
		}
		params.VotingStatus = &status
	}
	return params, nil
}

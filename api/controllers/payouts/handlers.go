package payouts

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/poolfund-backend/api/responses"
	"github.com/angelmondragon/poolfund-backend/api/validators"
	internalpayouts "github.com/angelmondragon/poolfund-backend/internal/payouts"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

// Create proposes a payout from the pool to one of its members.
func Create(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createPayoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Create(r.Context(), req.toInput(poolID, actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusCreated, "payout created", payout)
	}
}

// List returns a page of the pool's payouts, newest first.
func List(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parseListParams(r, poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Stats(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return poolRead(logg, func(r *http.Request, poolID uuid.UUID) (any, error) {
		return svc.Stats(r.Context(), poolID)
	})
}

// EligibleMembers lists members whose contributed balance can back a payout.
func EligibleMembers(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return poolRead(logg, func(r *http.Request, poolID uuid.UUID) (any, error) {
		return svc.EligibleMembers(r.Context(), poolID)
	})
}

// ProcessExpired finalizes every expired voting round in the pool on demand.
func ProcessExpired(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return poolRead(logg, func(r *http.Request, poolID uuid.UUID) (any, error) {
		actor, err := requireActor(r)
		if err != nil {
			return nil, err
		}
		res, err := svc.ProcessExpired(r.Context(), poolID, actor)
		if err != nil && res.Finalized == 0 {
			return nil, err
		}
		if err != nil && logg != nil {
			logg.Error(logg.WithPoolID(r.Context(), poolID.String()), "partial expiry sweep", err)
		}
		return res, nil
	})
}

func Get(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		return svc.Get(r.Context(), payoutID)
	})
}

func Transactions(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		return svc.ListTransactions(r.Context(), payoutID)
	})
}

func VotingResults(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		return svc.GetResults(r.Context(), payoutID)
	})
}

func EligibleVoters(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		return svc.GetEligibleVoters(r.Context(), payoutID)
	})
}

func VotingStatus(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		return svc.VotingStatus(r.Context(), payoutID)
	})
}

// CanVote answers whether the caller may vote on the payout right now.
func CanVote(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutRead(logg, func(r *http.Request, payoutID uuid.UUID) (any, error) {
		actor, err := requireActor(r)
		if err != nil {
			return nil, err
		}
		return svc.CanVote(r.Context(), payoutID, actor)
	})
}

func UpdateStatus(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutWrite(logg, func(r *http.Request, payoutID, actor uuid.UUID) (any, string, error) {
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, "", err
		}
		payout, err := svc.UpdateStatus(r.Context(), req.toInput(payoutID, actor))
		return payout, "payout status updated", err
	})
}

func Cancel(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutWrite(logg, func(r *http.Request, payoutID, actor uuid.UUID) (any, string, error) {
		var req cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, "", err
			}
		}
		payout, err := svc.Cancel(r.Context(), internalpayouts.CancelInput{
			PayoutID: payoutID,
			Actor:    actor,
			Reason:   validators.CleanText(req.Reason, maxTextLength),
		})
		return payout, "payout cancelled", err
	})
}

func StartVoting(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutWrite(logg, func(r *http.Request, payoutID, actor uuid.UUID) (any, string, error) {
		var req startVotingRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, "", err
			}
		}
		payout, err := svc.StartVoting(r.Context(), internalpayouts.StartVotingInput{
			PayoutID:      payoutID,
			Actor:         actor,
			DurationHours: req.DurationHours,
		})
		return payout, "voting started", err
	})
}

// CastVote records or replaces the caller's vote and reports the payout state
// after any threshold decision.
func CastVote(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutWrite(logg, func(r *http.Request, payoutID, actor uuid.UUID) (any, string, error) {
		var req castVoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, "", err
		}
		result, err := svc.CastVote(r.Context(), req.toInput(payoutID, actor))
		if err != nil {
			return nil, "", err
		}
		msg := "vote recorded"
		if result.Updated {
			msg = "vote updated"
		}
		return result, msg, nil
	})
}

func poolRead(logg *logger.Logger, fn func(r *http.Request, poolID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		poolID, err := validators.ParseUUIDParam(r, "poolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := fn(r, poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}

func payoutRead(logg *logger.Logger, fn func(r *http.Request, payoutID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := fn(r, payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}

func payoutWrite(logg *logger.Logger, fn func(r *http.Request, payoutID, actor uuid.UUID) (any, string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, msg, err := fn(r, payoutID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, msg, data)
	}
}

package payouts

import (
	"errors"

	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
)

var (
	ErrPoolNotFound              = errors.New("pool not found")
	ErrPayoutNotFound            = errors.New("payout not found")
	ErrRecipientNotMember        = errors.New("recipient is not a member of the pool")
	ErrInsufficientPoolBalance   = errors.New("payout amount exceeds the pool balance")
	ErrInsufficientMemberBalance = errors.New("payout amount exceeds the recipient's contributed balance")
	ErrVotingNotEnabledForPool   = errors.New("voting is not enabled for this pool")
	ErrVotingNotActive           = errors.New("voting is not active for this payout")
	ErrVotingPeriodEnded         = errors.New("voting period has ended")
	ErrInvalidStatusTransition   = errors.New("invalid payout status transition")
	ErrSelfVote                  = errors.New("the payout recipient and creator cannot vote on it")
	ErrNotPoolMember             = errors.New("voter is not a member of the pool")
	ErrAbstainNotAllowed         = errors.New("abstaining is not allowed in this pool")
)

var sentinelCodes = map[error]pkgerrors.Code{
	ErrPoolNotFound:              pkgerrors.CodeNotFound,
	ErrPayoutNotFound:            pkgerrors.CodeNotFound,
	ErrRecipientNotMember:        pkgerrors.CodeBusinessRule,
	ErrInsufficientPoolBalance:   pkgerrors.CodeBusinessRule,
	ErrInsufficientMemberBalance: pkgerrors.CodeBusinessRule,
	ErrVotingNotEnabledForPool:   pkgerrors.CodeBusinessRule,
	ErrVotingNotActive:           pkgerrors.CodeBusinessRule,
	ErrVotingPeriodEnded:         pkgerrors.CodeBusinessRule,
	ErrInvalidStatusTransition:   pkgerrors.CodeStateConflict,
	ErrSelfVote:                  pkgerrors.CodeBusinessRule,
	ErrNotPoolMember:             pkgerrors.CodeBusinessRule,
	ErrAbstainNotAllowed:         pkgerrors.CodeBusinessRule,
}

// domainError wraps a sentinel in a typed error so callers can match it with
// errors.Is while the HTTP layer maps the code.
func domainError(sentinel error) *pkgerrors.Error {
	code, ok := sentinelCodes[sentinel]
	if !ok {
		code = pkgerrors.CodeInternal
	}
	return pkgerrors.Wrap(code, sentinel, sentinel.Error())
}

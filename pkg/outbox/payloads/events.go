package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// PayoutCreatedEvent signals a new payout and the funds it reserved.
type PayoutCreatedEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	PoolID        uuid.UUID          `json:"pool_id"`
	RecipientID   uuid.UUID          `json:"recipient_id"`
	CreatedBy     uuid.UUID          `json:"created_by"`
	Amount        decimal.Decimal    `json:"amount"`
	Status        enums.PayoutStatus `json:"status"`
	VotingEnabled bool               `json:"voting_enabled"`
}

// PayoutStatusChangedEvent is emitted for every business status transition.
type PayoutStatusChangedEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	PoolID        uuid.UUID          `json:"pool_id"`
	From          enums.PayoutStatus `json:"from"`
	To            enums.PayoutStatus `json:"to"`
	VotingStatus  enums.VotingStatus `json:"voting_status"`
	FailureReason *string            `json:"failure_reason,omitempty"`
}

// PayoutVoteCastEvent records one accepted vote.
type PayoutVoteCastEvent struct {
	PayoutID           uuid.UUID       `json:"payout_id"`
	PoolID             uuid.UUID       `json:"pool_id"`
	VoterID            uuid.UUID       `json:"voter_id"`
	VoteType           enums.VoteType  `json:"vote_type"`
	VotingPower        decimal.Decimal `json:"voting_power"`
	Replaced           bool            `json:"replaced"`
	ApprovalPercentage decimal.Decimal `json:"approval_percentage"`
	TotalVotes         int             `json:"total_votes"`
}

// PayoutVotingFinalizedEvent closes a voting round.
type PayoutVotingFinalizedEvent struct {
	PayoutID           uuid.UUID          `json:"payout_id"`
	PoolID             uuid.UUID          `json:"pool_id"`
	Result             enums.VotingResult `json:"result"`
	Status             enums.PayoutStatus `json:"status"`
	ApprovalPercentage decimal.Decimal    `json:"approval_percentage"`
	TotalVotes         int                `json:"total_votes"`
	Reason             string             `json:"reason,omitempty"`
	Expired            bool               `json:"expired"`
}

// PayoutCancelledEvent reports a cancellation and the released reservation.
type PayoutCancelledEvent struct {
	PayoutID       uuid.UUID       `json:"payout_id"`
	PoolID         uuid.UUID       `json:"pool_id"`
	ReleasedAmount decimal.Decimal `json:"released_amount"`
	Reason         string          `json:"reason,omitempty"`
	CancelledAt    time.Time       `json:"cancelled_at"`
}

// VotingSettingsUpdatedEvent carries a pool's new voting configuration.
type VotingSettingsUpdatedEvent struct {
	PoolID        uuid.UUID        `json:"pool_id"`
	VotingEnabled bool             `json:"voting_enabled"`
	VotingType    enums.VotingType `json:"voting_type"`
	ThresholdPct  int              `json:"threshold_pct"`
}

package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// CreateInput describes a new payout request.
type CreateInput struct {
	PoolID       uuid.UUID
	RecipientID  uuid.UUID
	CreatedBy    uuid.UUID
	Amount       decimal.Decimal
	Description  string
	EnableVoting bool
}

// StartVotingInput opens voting on a pending payout. A nil duration uses the
// pool's configured duration.
type StartVotingInput struct {
	PayoutID      uuid.UUID
	Actor         uuid.UUID
	DurationHours *int
}

// UpdateStatusInput moves a payout to a new business status.
type UpdateStatusInput struct {
	PayoutID      uuid.UUID
	Actor         uuid.UUID
	Status        enums.PayoutStatus
	FailureReason *string
}

// CancelInput cancels a payout and releases its reservation.
type CancelInput struct {
	PayoutID uuid.UUID
	Actor    uuid.UUID
	Reason   string
}

// CastVoteInput is one member's vote.
type CastVoteInput struct {
	PayoutID uuid.UUID
	VoterID  uuid.UUID
	VoteType enums.VoteType
	Comments *string
}

// CastVoteResult reports the payout state after the vote was applied.
type CastVoteResult struct {
	Payout  *models.PoolPayout     `json:"payout"`
	Vote    *models.PoolPayoutVote `json:"vote"`
	Updated bool                   `json:"updated"`
	Outcome Outcome                `json:"outcome"`
}

// Eligibility reasons returned by CanVote.
const (
	ReasonEligible          = ""
	ReasonAlreadyVoted      = "already_voted"
	ReasonNotMember         = "not_member"
	ReasonVotingNotActive   = "voting_not_active"
	ReasonVotingEnded       = "voting_ended"
	ReasonSelfPayout        = "self_payout"
	ReasonInsufficientPower = "insufficient_power"
)

// Eligibility is the read-only answer to "may this user vote now".
// AlreadyVoted is informational: casting again replaces the earlier vote.
type Eligibility struct {
	CanVote      bool            `json:"canVote"`
	Reason       string          `json:"reason,omitempty"`
	HasVoted     bool            `json:"hasVoted"`
	CurrentVote  *enums.VoteType `json:"currentVote,omitempty"`
	VotingPower  decimal.Decimal `json:"votingPower"`
	VotingEndsAt *time.Time      `json:"votingEndsAt,omitempty"`
}

// VotingResults is the full voting picture for a payout.
type VotingResults struct {
	Payout            *models.PoolPayout      `json:"payout"`
	Votes             []models.PoolPayoutVote `json:"votes"`
	Tally             votes.Tally             `json:"tally"`
	TotalMembers      int64                   `json:"totalMembers"`
	VotedMembers      int                     `json:"votedMembers"`
	ParticipationRate decimal.Decimal         `json:"participationRate"`
	RequiredThreshold int                     `json:"requiredThreshold"`
	RequireQuorum     bool                    `json:"requireQuorum"`
	QuorumPct         int                     `json:"quorumPct"`
	MinVoters         int                     `json:"minVoters"`
}

// EligibleVoter is one pool member as seen from a payout's ballot.
type EligibleVoter struct {
	UserID      uuid.UUID       `json:"userId"`
	MemberID    uuid.UUID       `json:"memberId"`
	VotingPower decimal.Decimal `json:"votingPower"`
	HasVoted    bool            `json:"hasVoted"`
	Vote        *enums.VoteType `json:"vote,omitempty"`
	CanVote     bool            `json:"canVote"`
	Reason      string          `json:"reason,omitempty"`
}

// VotingStatusView is the lightweight status poll response.
type VotingStatusView struct {
	PayoutID           uuid.UUID           `json:"payoutId"`
	Status             enums.PayoutStatus  `json:"status"`
	VotingEnabled      bool                `json:"votingEnabled"`
	VotingStatus       enums.VotingStatus  `json:"votingStatus"`
	VotingResult       *enums.VotingResult `json:"votingResult,omitempty"`
	VotingEndsAt       *time.Time          `json:"votingEndsAt,omitempty"`
	RemainingSeconds   int64               `json:"remainingSeconds"`
	ApproveVotes       int                 `json:"approveVotes"`
	RejectVotes        int                 `json:"rejectVotes"`
	AbstainVotes       int                 `json:"abstainVotes"`
	TotalVotes         int                 `json:"totalVotes"`
	ApprovalPercentage decimal.Decimal     `json:"approvalPercentage"`
	FailureReason      *string             `json:"failureReason,omitempty"`
}

// ListParams filters a pool's payouts.
type ListParams struct {
	PoolID       uuid.UUID
	Status       *enums.PayoutStatus
	VotingStatus *enums.VotingStatus
	Limit        int
	Cursor       string
}

// ListResult is one page of payouts.
type ListResult struct {
	Items  []models.PoolPayout `json:"items"`
	Cursor string              `json:"cursor,omitempty"`
}

// Stats aggregates a pool's payouts.
type Stats struct {
	PoolID         uuid.UUID                    `json:"poolId"`
	Total          int64                        `json:"total"`
	ByStatus       map[enums.PayoutStatus]int64 `json:"byStatus"`
	ByVotingStatus map[enums.VotingStatus]int64 `json:"byVotingStatus"`
	SuccessRate    decimal.Decimal              `json:"successRate"`
	CompletedTotal decimal.Decimal              `json:"completedTotal"`
	ReservedTotal  decimal.Decimal              `json:"reservedTotal"`
}

// SweepResult summarises one expiry sweep.
type SweepResult struct {
	Finalized int `json:"finalized"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r *SweepResult) add(other SweepResult) {
	r.Finalized += other.Finalized
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// PoolPayout is a proposed disbursement of pool funds to one member along with
// its voting sub-state and denormalized vote counters.
type PoolPayout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PoolID        uuid.UUID          `gorm:"column:pool_id;type:uuid;not null" json:"poolId"`
	RecipientID   uuid.UUID          `gorm:"column:recipient_id;type:uuid;not null" json:"recipientId"`
	CreatedBy     uuid.UUID          `gorm:"column:created_by;type:uuid;not null" json:"createdBy"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Description   string             `gorm:"column:description" json:"description"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null" json:"status"`
	FailureReason *string            `gorm:"column:failure_reason" json:"failureReason"`

	VotingEnabled      bool                `gorm:"column:voting_enabled;not null;default:false" json:"votingEnabled"`
	VotingStatus       enums.VotingStatus  `gorm:"column:voting_status;type:voting_status_enum;not null" json:"votingStatus"`
	VotingResult       *enums.VotingResult `gorm:"column:voting_result;type:voting_result_enum" json:"votingResult"`
	VotingStartsAt     *time.Time          `gorm:"column:voting_starts_at" json:"votingStartsAt"`
	VotingEndsAt       *time.Time          `gorm:"column:voting_ends_at" json:"votingEndsAt"`
	ApprovalPercentage decimal.Decimal     `gorm:"column:approval_percentage;type:numeric(5,2);not null;default:0" json:"approvalPercentage"`
	ApproveVotes       int                 `gorm:"column:approve_votes;not null;default:0" json:"approveVotes"`
	RejectVotes        int                 `gorm:"column:reject_votes;not null;default:0" json:"rejectVotes"`
	AbstainVotes       int                 `gorm:"column:abstain_votes;not null;default:0" json:"abstainVotes"`
	TotalVotes         int                 `gorm:"column:total_votes;not null;default:0" json:"totalVotes"`

	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelledAt"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PoolPayout) TableName() string { return "pool_payouts" }

func (p *PoolPayout) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PoolPayoutVote is one member's vote on a payout. (payout_id, voter_id) is unique.
type PoolPayoutVote struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PayoutID    uuid.UUID       `gorm:"column:payout_id;type:uuid;not null" json:"payoutId"`
	VoterID     uuid.UUID       `gorm:"column:voter_id;type:uuid;not null" json:"voterId"`
	VoteType    enums.VoteType  `gorm:"column:vote_type;type:vote_type_enum;not null" json:"voteType"`
	VotingPower decimal.Decimal `gorm:"column:voting_power;type:numeric(14,2);not null" json:"votingPower"`
	Comments    *string         `gorm:"column:comments" json:"comments"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PoolPayoutVote) TableName() string { return "pool_payout_votes" }

func (v *PoolPayoutVote) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// PoolPayoutTransaction is an append-only audit row for every balance
// affecting payout transition.
type PoolPayoutTransaction struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PayoutID        uuid.UUID                   `gorm:"column:payout_id;type:uuid;not null" json:"payoutId"`
	PoolID          uuid.UUID                   `gorm:"column:pool_id;type:uuid;not null" json:"poolId"`
	TransactionType enums.PayoutTransactionType `gorm:"column:transaction_type;type:payout_transaction_type_enum;not null" json:"transactionType"`
	Amount          decimal.Decimal             `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	BalanceBefore   decimal.Decimal             `gorm:"column:balance_before;type:numeric(14,2);not null" json:"balanceBefore"`
	BalanceAfter    decimal.Decimal             `gorm:"column:balance_after;type:numeric(14,2);not null" json:"balanceAfter"`
	Description     string                      `gorm:"column:description" json:"description"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (PoolPayoutTransaction) TableName() string { return "pool_payout_transactions" }

func (t *PoolPayoutTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

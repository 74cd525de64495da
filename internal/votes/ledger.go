package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// Ballot is one vote to record against a locked payout.
type Ballot struct {
	VoterID     uuid.UUID
	VoteType    enums.VoteType
	VotingPower decimal.Decimal
	Comments    *string
}

// Recorded reports what Record did.
type Recorded struct {
	Vote     *models.PoolPayoutVote
	Previous *enums.VoteType
	Tally    Tally
}

// Changed reports whether the voter switched to a different vote type.
func (r Recorded) Changed() bool {
	return r.Previous != nil && *r.Previous != r.Vote.VoteType
}

// Ledger upserts votes and keeps the parent payout's aggregates in step.
type Ledger struct {
	repo Repository
}

// NewLedger wires a vote ledger over repo.
func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("votes repository required")
	}
	return &Ledger{repo: repo}, nil
}

// Record upserts the ballot for payout and updates the payout's counters and
// approval percentage in memory. The payout row must already be locked by tx
// and the caller persists it afterwards.
func (l *Ledger) Record(ctx context.Context, tx *gorm.DB, payout *models.PoolPayout, ballot Ballot) (Recorded, error) {
	if tx == nil {
		return Recorded{}, fmt.Errorf("transaction required")
	}
	if payout == nil {
		return Recorded{}, fmt.Errorf("payout required")
	}
	if !ballot.VoteType.IsValid() {
		return Recorded{}, fmt.Errorf("invalid vote type %q", ballot.VoteType)
	}
	repo := l.repo.WithTx(tx)

	var result Recorded
	existing, err := repo.Find(ctx, payout.ID, ballot.VoterID)
	switch {
	case err == nil:
		previous := existing.VoteType
		result.Previous = &previous
		existing.VoteType = ballot.VoteType
		existing.VotingPower = ballot.VotingPower
		if ballot.Comments != nil {
			existing.Comments = ballot.Comments
		}
		if err := repo.Update(ctx, existing); err != nil {
			return Recorded{}, fmt.Errorf("update vote: %w", err)
		}
		result.Vote = existing
	case errors.Is(err, gorm.ErrRecordNotFound):
		vote := &models.PoolPayoutVote{
			PayoutID:    payout.ID,
			VoterID:     ballot.VoterID,
			VoteType:    ballot.VoteType,
			VotingPower: ballot.VotingPower,
			Comments:    ballot.Comments,
		}
		if err := repo.Create(ctx, vote); err != nil {
			return Recorded{}, fmt.Errorf("create vote: %w", err)
		}
		result.Vote = vote
	default:
		return Recorded{}, fmt.Errorf("load vote: %w", err)
	}

	ApplyVote(payout, result.Previous, ballot.VoteType)

	rows, err := repo.ListByPayoutID(ctx, payout.ID)
	if err != nil {
		return Recorded{}, fmt.Errorf("list votes: %w", err)
	}
	result.Tally = ComputeTally(rows)
	payout.ApprovalPercentage = result.Tally.ApprovalPercentage()
	return result, nil
}

// Tally recomputes the aggregate for payoutID from its stored votes.
func (l *Ledger) Tally(ctx context.Context, tx *gorm.DB, payoutID uuid.UUID) (Tally, []models.PoolPayoutVote, error) {
	rows, err := l.repo.WithTx(tx).ListByPayoutID(ctx, payoutID)
	if err != nil {
		return Tally{}, nil, err
	}
	return ComputeTally(rows), rows, nil
}

package votes

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Tally aggregates the full vote set of one payout.
type Tally struct {
	ApprovePower decimal.Decimal `json:"approvePower"`
	RejectPower  decimal.Decimal `json:"rejectPower"`
	AbstainPower decimal.Decimal `json:"abstainPower"`
	TotalPower   decimal.Decimal `json:"totalPower"`
	Approve      int             `json:"approve"`
	Reject       int             `json:"reject"`
	Abstain      int             `json:"abstain"`
	Total        int             `json:"total"`
}

// ComputeTally sums counts and power per vote type.
func ComputeTally(rows []models.PoolPayoutVote) Tally {
	t := Tally{
		ApprovePower: decimal.Zero,
		RejectPower:  decimal.Zero,
		AbstainPower: decimal.Zero,
		TotalPower:   decimal.Zero,
	}
	for _, row := range rows {
		switch row.VoteType {
		case enums.VoteTypeApprove:
			t.Approve++
			t.ApprovePower = t.ApprovePower.Add(row.VotingPower)
		case enums.VoteTypeReject:
			t.Reject++
			t.RejectPower = t.RejectPower.Add(row.VotingPower)
		case enums.VoteTypeAbstain:
			t.Abstain++
			t.AbstainPower = t.AbstainPower.Add(row.VotingPower)
		default:
			continue
		}
		t.Total++
		t.TotalPower = t.TotalPower.Add(row.VotingPower)
	}
	return t
}

// ApprovalPercentage is approve power over all cast power, rounded to two
// decimals. Abstentions count toward the denominator. Zero when nothing was cast.
func (t Tally) ApprovalPercentage() decimal.Decimal {
	if !t.TotalPower.IsPositive() {
		return decimal.Zero
	}
	return t.ApprovePower.Mul(hundred).DivRound(t.TotalPower, 2)
}

// MeetsThreshold reports whether approve power is at least pct percent of all
// cast power. The comparison is exact; ApprovalPercentage is for display only.
func (t Tally) MeetsThreshold(pct int) bool {
	if !t.TotalPower.IsPositive() {
		return pct <= 0
	}
	return t.ApprovePower.Mul(hundred).GreaterThanOrEqual(t.TotalPower.Mul(decimal.NewFromInt(int64(pct))))
}

// ApplyVote moves the payout's denormalized counters for one vote. previous
// is nil for a first vote. Re-casting the same type leaves counters alone.
func ApplyVote(payout *models.PoolPayout, previous *enums.VoteType, next enums.VoteType) {
	if previous != nil {
		if *previous == next {
			return
		}
		adjust(payout, *previous, -1)
		adjust(payout, next, 1)
		return
	}
	adjust(payout, next, 1)
	payout.TotalVotes++
}

func adjust(payout *models.PoolPayout, voteType enums.VoteType, delta int) {
	switch voteType {
	case enums.VoteTypeApprove:
		payout.ApproveVotes += delta
	case enums.VoteTypeReject:
		payout.RejectVotes += delta
	case enums.VoteTypeAbstain:
		payout.AbstainVotes += delta
	}
}

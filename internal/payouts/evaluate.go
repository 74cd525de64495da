package payouts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// Outcome is the state of a voting round after evaluation.
type Outcome string

const (
	OutcomeOpen     Outcome = "open"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

var hundred = decimal.NewFromInt(100)

type roundFacts struct {
	tally       votes.Tally
	memberCount int64
	now         time.Time
}

type verdict struct {
	outcome            Outcome
	reason             string
	releaseReservation bool
}

func (v verdict) decided() bool {
	return v.outcome != OutcomeOpen
}

// checkThreshold runs after every vote. Approval closes the round early, but a
// quorum shortfall evaluated afterwards overrides it. A round past its deadline
// is finalized outright.
func checkThreshold(p *models.PoolPayout, s *models.PoolVotingSettings, f roundFacts) verdict {
	if expired(p, f.now) {
		return finalize(p, s, f)
	}
	if !f.tally.MeetsThreshold(s.VotingThresholdPct) {
		return verdict{outcome: OutcomeOpen}
	}
	if f.tally.Total < s.MinVoters {
		return verdict{outcome: OutcomeOpen}
	}
	if short, reason := quorumShortfall(s, f); short {
		return closeRound(p, enums.VotingResultFailed, reason)
	}

	p.VotingStatus = enums.VotingStatusCompleted
	result := enums.VotingResultApproved
	p.VotingResult = &result
	if s.AutoApprove {
		p.Status = enums.PayoutStatusProcessing
	}
	return verdict{outcome: OutcomeApproved}
}

// finalize closes a round whose voting period is over.
func finalize(p *models.PoolPayout, s *models.PoolVotingSettings, f roundFacts) verdict {
	p.ApprovalPercentage = f.tally.ApprovalPercentage()

	if f.tally.Total < s.MinVoters {
		return closeRound(p, enums.VotingResultFailed,
			fmt.Sprintf("insufficient voters: %d of %d required", f.tally.Total, s.MinVoters))
	}
	if short, reason := quorumShortfall(s, f); short {
		return closeRound(p, enums.VotingResultFailed, reason)
	}
	if !f.tally.MeetsThreshold(s.VotingThresholdPct) {
		return closeRound(p, enums.VotingResultRejected,
			fmt.Sprintf("approval %s%% is below the %d%% threshold", p.ApprovalPercentage.StringFixed(2), s.VotingThresholdPct))
	}

	p.VotingStatus = enums.VotingStatusCompleted
	result := enums.VotingResultApproved
	p.VotingResult = &result
	p.Status = enums.PayoutStatusProcessing
	return verdict{outcome: OutcomeApproved}
}

func closeRound(p *models.PoolPayout, result enums.VotingResult, reason string) verdict {
	p.VotingStatus = enums.VotingStatusCompleted
	p.VotingResult = &result
	p.Status = enums.PayoutStatusFailed
	p.FailureReason = &reason

	outcome := OutcomeRejected
	if result == enums.VotingResultFailed {
		outcome = OutcomeFailed
	}
	return verdict{outcome: outcome, reason: reason, releaseReservation: true}
}

func quorumShortfall(s *models.PoolVotingSettings, f roundFacts) (bool, string) {
	if !s.RequireQuorum {
		return false, ""
	}
	if quorumMet(f.tally.Total, f.memberCount, s.QuorumPct) {
		return false, ""
	}
	participation := participationRate(f.tally.Total, f.memberCount)
	return true, fmt.Sprintf("quorum not met: %s%% participation, %d%% required", participation.StringFixed(2), s.QuorumPct)
}

// quorumMet compares voted/members against pct without rounding.
func quorumMet(voted int, members int64, pct int) bool {
	if members <= 0 {
		return pct <= 0
	}
	return int64(voted)*100 >= int64(pct)*members
}

func participationRate(voted int, members int64) decimal.Decimal {
	if members <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(voted)).Mul(hundred).DivRound(decimal.NewFromInt(members), 2)
}

func expired(p *models.PoolPayout, now time.Time) bool {
	return p.VotingEndsAt != nil && !now.Before(*p.VotingEndsAt)
}

// awaitingFinalization reports whether p is an active round past its deadline.
func awaitingFinalization(p *models.PoolPayout, now time.Time) bool {
	return p.VotingEnabled &&
		p.VotingStatus == enums.VotingStatusActive &&
		p.Status == enums.PayoutStatusPendingVoting &&
		expired(p, now)
}

// canComplete guards the completed status: voting must be off, or the round
// must have been approved and its nominal period elapsed.
func canComplete(p *models.PoolPayout, now time.Time) bool {
	if !p.VotingEnabled {
		return true
	}
	return p.VotingStatus == enums.VotingStatusCompleted &&
		p.VotingResult != nil && *p.VotingResult == enums.VotingResultApproved &&
		expired(p, now)
}

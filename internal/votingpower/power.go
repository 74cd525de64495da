// Package votingpower maps a pool member to the weight their payout vote
// carries under each voting scheme.
package votingpower

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

const (
	MaxContributionPower = 1_000_000
	MaxTenureMonths      = 120
)

var (
	one             = decimal.NewFromInt(1)
	contributionCap = decimal.NewFromInt(MaxContributionPower)
)

var tierWeights = map[enums.MemberTier]int64{
	enums.MemberTierBasic:    1,
	enums.MemberTierSilver:   2,
	enums.MemberTierGold:     3,
	enums.MemberTierPlatinum: 5,
	enums.MemberTierAdmin:    10,
}

// Calculate returns the member's voting power under votingType as of now.
// The result is never below 1.
func Calculate(member models.PoolMember, votingType enums.VotingType, now time.Time) decimal.Decimal {
	var power decimal.Decimal
	switch votingType {
	case enums.VotingTypeOneMemberOneVote:
		power = one
	case enums.VotingTypeWeightedByContribution:
		power = decimal.Min(member.TotalContributed, contributionCap)
	case enums.VotingTypeWeightedByShares:
		power = decimal.NewFromInt(int64(member.ShareCount))
	case enums.VotingTypeWeightedByTenure:
		power = decimal.NewFromInt(int64(min(MonthsBetween(member.JoinedAt, now), MaxTenureMonths)))
	case enums.VotingTypeTierBased:
		weight, ok := tierWeights[member.Tier]
		if !ok {
			weight = 1
		}
		power = decimal.NewFromInt(weight)
	default:
		power = one
	}
	if power.LessThan(one) {
		return one
	}
	return power
}

// MonthsBetween counts whole calendar months from start to end.
func MonthsBetween(start, end time.Time) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	start, end = start.UTC(), end.UTC()
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	anniversary := start.AddDate(0, months, 0)
	if anniversary.After(end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

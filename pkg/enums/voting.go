package enums

import "fmt"

// VotingStatus maps to the voting_status_enum enum in Postgres.
type VotingStatus string

const (
	VotingStatusNotStarted     VotingStatus = "not_started"
	VotingStatusActive         VotingStatus = "active"
	VotingStatusCompleted      VotingStatus = "completed"
	VotingStatusCancelled      VotingStatus = "cancelled"
	VotingStatusDisabledByPool VotingStatus = "disabled_by_pool"
)

var validVotingStatuses = []VotingStatus{
	VotingStatusNotStarted,
	VotingStatusActive,
	VotingStatusCompleted,
	VotingStatusCancelled,
	VotingStatusDisabledByPool,
}

func (s VotingStatus) IsValid() bool {
	for _, candidate := range validVotingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// VotingStatuses returns every voting status in declaration order.
func VotingStatuses() []VotingStatus {
	out := make([]VotingStatus, len(validVotingStatuses))
	copy(out, validVotingStatuses)
	return out
}

// VotingResult maps to the voting_result_enum enum in Postgres. A payout
// without a decision carries a nil result.
type VotingResult string

const (
	VotingResultApproved VotingResult = "approved"
	VotingResultRejected VotingResult = "rejected"
	VotingResultFailed   VotingResult = "failed"
)

func (r VotingResult) IsValid() bool {
	switch r {
	case VotingResultApproved, VotingResultRejected, VotingResultFailed:
		return true
	}
	return false
}

// VotingType selects how a member's voting power is computed.
type VotingType string

const (
	VotingTypeOneMemberOneVote       VotingType = "one_member_one_vote"
	VotingTypeWeightedByContribution VotingType = "weighted_by_contribution"
	VotingTypeWeightedByShares       VotingType = "weighted_by_shares"
	VotingTypeWeightedByTenure       VotingType = "weighted_by_tenure"
	VotingTypeTierBased              VotingType = "tier_based"
)

var validVotingTypes = []VotingType{
	VotingTypeOneMemberOneVote,
	VotingTypeWeightedByContribution,
	VotingTypeWeightedByShares,
	VotingTypeWeightedByTenure,
	VotingTypeTierBased,
}

func (t VotingType) IsValid() bool {
	for _, candidate := range validVotingTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseVotingType converts raw input into VotingType.
func ParseVotingType(value string) (VotingType, error) {
	for _, candidate := range validVotingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voting type %q", value)
}

// VoteType maps to the vote_type_enum enum in Postgres.
type VoteType string

const (
	VoteTypeApprove VoteType = "approve"
	VoteTypeReject  VoteType = "reject"
	VoteTypeAbstain VoteType = "abstain"
)

func (v VoteType) IsValid() bool {
	switch v {
	case VoteTypeApprove, VoteTypeReject, VoteTypeAbstain:
		return true
	}
	return false
}

// ParseVoteType converts raw input into VoteType.
func ParseVoteType(value string) (VoteType, error) {
	v := VoteType(value)
	if !v.IsValid() {
		return "", fmt.Errorf("invalid vote type %q", value)
	}
	return v, nil
}

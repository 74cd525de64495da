package payouts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/internal/votingpower"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
)

const maxCommentLength = 1000

func (s *service) CastVote(ctx context.Context, input CastVoteInput) (*CastVoteResult, error) {
	if input.PayoutID == uuid.Nil || input.VoterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id and voter id are required")
	}
	if !input.VoteType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vote type must be approve, reject or abstain")
	}
	if input.Comments != nil {
		trimmed := strings.TrimSpace(*input.Comments)
		if len(trimmed) > maxCommentLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "comments are too long")
		}
		input.Comments = &trimmed
	}

	var result *CastVoteResult
	var decided verdict
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		payout, err := s.lockPayout(ctx, tx, input.PayoutID)
		if err != nil {
			return err
		}
		if !payout.VotingEnabled || payout.VotingStatus != enums.VotingStatusActive {
			return domainError(ErrVotingNotActive)
		}
		now := s.now()
		if payout.VotingEndsAt == nil || !now.Before(*payout.VotingEndsAt) {
			return domainError(ErrVotingPeriodEnded)
		}

		poolRepo := s.pools.WithTx(tx)
		member, err := poolRepo.GetMember(ctx, payout.PoolID, input.VoterID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainError(ErrNotPoolMember)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voter membership")
		}
		if input.VoterID == payout.RecipientID || input.VoterID == payout.CreatedBy {
			return domainError(ErrSelfVote)
		}

		settings, err := s.settings.GetTx(ctx, tx, payout.PoolID)
		if err != nil {
			return err
		}
		if input.VoteType == enums.VoteTypeAbstain && !settings.AllowAbstain {
			return domainError(ErrAbstainNotAllowed)
		}

		recorded, err := s.votes.Record(ctx, tx, payout, votes.Ballot{
			VoterID:     input.VoterID,
			VoteType:    input.VoteType,
			VotingPower: votingpower.Calculate(*member, settings.VotingType, now),
			Comments:    input.Comments,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vote")
		}

		memberCount, err := poolRepo.CountMembers(ctx, payout.PoolID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pool members")
		}
		from := payout.Status
		v := checkThreshold(payout, settings, roundFacts{tally: recorded.Tally, memberCount: memberCount, now: now})
		if err := s.applyVerdict(ctx, tx, payout, from, v, input.VoterID, false); err != nil {
			return err
		}

		if err := s.emit(ctx, tx, enums.EventPayoutVoteCast, payout, input.VoterID, payloads.PayoutVoteCastEvent{
			PayoutID:           payout.ID,
			PoolID:             payout.PoolID,
			VoterID:            input.VoterID,
			VoteType:           recorded.Vote.VoteType,
			VotingPower:        recorded.Vote.VotingPower,
			Replaced:           recorded.Previous != nil,
			ApprovalPercentage: payout.ApprovalPercentage,
			TotalVotes:         payout.TotalVotes,
		}); err != nil {
			return err
		}

		decided = v
		result = &CastVoteResult{
			Payout:  payout,
			Vote:    recorded.Vote,
			Updated: recorded.Previous != nil,
			Outcome: v.outcome,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVotingPeriodEnded) {
			// close the round now rather than waiting for the next sweep
			if _, ferr := s.finalizeExpired(ctx, input.PayoutID, true); ferr != nil {
				s.logError(ctx, "finalize expired payout after late vote", ferr)
			}
		}
		return nil, err
	}

	s.metrics.IncVoteCast(string(input.VoteType))
	logCtx := s.withFields(s.payoutContext(ctx, result.Payout), map[string]any{
		"voter_id":  input.VoterID.String(),
		"vote_type": input.VoteType,
		"replaced":  result.Updated,
	})
	s.info(logCtx, "payout vote recorded")
	if decided.decided() {
		s.recordFinalized(ctx, result.Payout, decided)
	}
	return result, nil
}

func (s *service) CanVote(ctx context.Context, payoutID, userID uuid.UUID) (*Eligibility, error) {
	if payoutID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id and user id are required")
	}
	payout, err := s.loadFresh(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetTx(ctx, nil, payout.PoolID)
	if err != nil {
		return nil, err
	}

	var member *models.PoolMember
	found, err := s.pools.GetMember(ctx, payout.PoolID, userID)
	switch {
	case err == nil:
		member = found
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	var existing *models.PoolPayoutVote
	if member != nil {
		_, rows, err := s.votes.Tally(ctx, nil, payoutID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load votes")
		}
		existing = voteBy(rows, userID)
	}

	now := s.now()
	eligibility := &Eligibility{VotingEndsAt: payout.VotingEndsAt}
	eligibility.CanVote, eligibility.Reason = s.eligibilityOf(payout, member, existing, userID, now)
	if member != nil {
		eligibility.VotingPower = votingpower.Calculate(*member, settings.VotingType, now)
	}
	if existing != nil {
		voteType := existing.VoteType
		eligibility.HasVoted = true
		eligibility.CurrentVote = &voteType
	}
	return eligibility, nil
}

// eligibilityOf applies the vote preconditions in the order CastVote checks
// them. already_voted leaves canVote true since a new vote replaces the old one.
func (s *service) eligibilityOf(payout *models.PoolPayout, member *models.PoolMember, existing *models.PoolPayoutVote, userID uuid.UUID, now time.Time) (bool, string) {
	if !payout.VotingEnabled || payout.VotingStatus != enums.VotingStatusActive {
		return false, ReasonVotingNotActive
	}
	if payout.VotingEndsAt == nil || !now.Before(*payout.VotingEndsAt) {
		return false, ReasonVotingEnded
	}
	if member == nil {
		return false, ReasonNotMember
	}
	if userID == payout.RecipientID || userID == payout.CreatedBy {
		return false, ReasonSelfPayout
	}
	if existing != nil {
		return true, ReasonAlreadyVoted
	}
	return true, ReasonEligible
}

func (s *service) GetResults(ctx context.Context, payoutID uuid.UUID) (*VotingResults, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := s.loadFresh(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetTx(ctx, nil, payout.PoolID)
	if err != nil {
		return nil, err
	}
	tally, rows, err := s.votes.Tally(ctx, nil, payoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load votes")
	}
	members, err := s.pools.CountMembers(ctx, payout.PoolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pool members")
	}
	if rows == nil {
		rows = []models.PoolPayoutVote{}
	}

	return &VotingResults{
		Payout:            payout,
		Votes:             rows,
		Tally:             tally,
		TotalMembers:      members,
		VotedMembers:      tally.Total,
		ParticipationRate: participationRate(tally.Total, members),
		RequiredThreshold: settings.VotingThresholdPct,
		RequireQuorum:     settings.RequireQuorum,
		QuorumPct:         settings.QuorumPct,
		MinVoters:         settings.MinVoters,
	}, nil
}

func (s *service) GetEligibleVoters(ctx context.Context, payoutID uuid.UUID) ([]EligibleVoter, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := s.loadFresh(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetTx(ctx, nil, payout.PoolID)
	if err != nil {
		return nil, err
	}
	members, err := s.pools.ListMembers(ctx, payout.PoolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pool members")
	}
	_, rows, err := s.votes.Tally(ctx, nil, payoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load votes")
	}

	now := s.now()
	voters := make([]EligibleVoter, 0, len(members))
	for i := range members {
		member := &members[i]
		existing := voteBy(rows, member.UserID)
		voter := EligibleVoter{
			UserID:      member.UserID,
			MemberID:    member.ID,
			VotingPower: votingpower.Calculate(*member, settings.VotingType, now),
			HasVoted:    existing != nil,
		}
		if existing != nil {
			voteType := existing.VoteType
			voter.Vote = &voteType
		}
		voter.CanVote, voter.Reason = s.eligibilityOf(payout, member, existing, member.UserID, now)
		voters = append(voters, voter)
	}
	return voters, nil
}

func (s *service) VotingStatus(ctx context.Context, payoutID uuid.UUID) (*VotingStatusView, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := s.loadFresh(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	view := &VotingStatusView{
		PayoutID:           payout.ID,
		Status:             payout.Status,
		VotingEnabled:      payout.VotingEnabled,
		VotingStatus:       payout.VotingStatus,
		VotingResult:       payout.VotingResult,
		VotingEndsAt:       payout.VotingEndsAt,
		ApproveVotes:       payout.ApproveVotes,
		RejectVotes:        payout.RejectVotes,
		AbstainVotes:       payout.AbstainVotes,
		TotalVotes:         payout.TotalVotes,
		ApprovalPercentage: payout.ApprovalPercentage,
		FailureReason:      payout.FailureReason,
	}
	if payout.VotingStatus == enums.VotingStatusActive && payout.VotingEndsAt != nil {
		if remaining := payout.VotingEndsAt.Sub(s.now()); remaining > 0 {
			view.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return view, nil
}

func voteBy(rows []models.PoolPayoutVote, userID uuid.UUID) *models.PoolPayoutVote {
	for i := range rows {
		if rows[i].VoterID == userID {
			return &rows[i]
		}
	}
	return nil
}

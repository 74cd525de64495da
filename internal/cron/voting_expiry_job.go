package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/poolfund-backend/internal/payouts"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

type expirySweeper interface {
	SweepAll(ctx context.Context) (payouts.SweepResult, error)
}

type VotingExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper expirySweeper
}

// NewVotingExpiryJob finalizes every voting round whose deadline has passed,
// across all pools.
func NewVotingExpiryJob(params VotingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("payout sweeper required")
	}
	return &votingExpiryJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type votingExpiryJob struct {
	logg    *logger.Logger
	sweeper expirySweeper
}

func (j *votingExpiryJob) Name() string { return "payout-voting-expiry" }

func (j *votingExpiryJob) Run(ctx context.Context) error {
	res, err := j.sweeper.SweepAll(ctx)
	if err != nil {
		return fmt.Errorf("voting expiry sweep (%d finalized, %d failed): %w", res.Finalized, res.Failed, err)
	}
	if res.Finalized > 0 || res.Skipped > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"finalized": res.Finalized,
			"skipped":   res.Skipped,
		}), "expired voting rounds finalized")
	}
	return nil
}

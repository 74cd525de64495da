package payouts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/authz"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
)

// maxSweepPasses bounds one SweepExpired call when batches keep filling up.
const maxSweepPasses = 50

// SweepExpired finalizes every active round past its deadline, in batches.
// A nil poolID sweeps all pools. Rows locked by another finalizer are skipped
// and one failing row does not stop the rest of the batch.
func (s *service) SweepExpired(ctx context.Context, poolID *uuid.UUID) (SweepResult, error) {
	return s.sweep(ctx, poolID, false)
}

// sweep with wait set blocks on rows another finalizer holds instead of
// skipping them, so a read that follows never sees them still active.
func (s *service) sweep(ctx context.Context, poolID *uuid.UUID, wait bool) (SweepResult, error) {
	var total SweepResult
	var errs error
	for pass := 0; pass < maxSweepPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(errs, err)
		}
		ids, err := s.repo.ListExpiredIDs(ctx, poolID, s.now(), s.cfg.SweepBatchSize)
		if err != nil {
			return total, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired payouts"))
		}
		if len(ids) == 0 {
			break
		}

		var batch SweepResult
		for _, id := range ids {
			finalized, err := s.finalizeExpired(ctx, id, wait)
			switch {
			case err != nil:
				batch.Failed++
				errs = multierr.Append(errs, fmt.Errorf("finalize payout %s: %w", id, err))
			case finalized:
				batch.Finalized++
			default:
				batch.Skipped++
			}
		}
		total.add(batch)

		if len(ids) < s.cfg.SweepBatchSize || batch.Finalized == 0 {
			break
		}
	}

	s.metrics.AddSweepRows("finalized", total.Finalized)
	s.metrics.AddSweepRows("skipped", total.Skipped)
	s.metrics.AddSweepRows("failed", total.Failed)
	if total.Finalized > 0 || total.Failed > 0 {
		logCtx := s.withFields(ctx, map[string]any{
			"finalized": total.Finalized,
			"skipped":   total.Skipped,
			"failed":    total.Failed,
		})
		if poolID != nil && s.logg != nil {
			logCtx = s.logg.WithPoolID(logCtx, poolID.String())
		}
		s.info(logCtx, "expired payout sweep finished")
	}
	return total, errs
}

// ProcessExpired is the on-demand sweep of one pool. Pool owners and active
// members may trigger it.
func (s *service) ProcessExpired(ctx context.Context, poolID, actor uuid.UUID) (SweepResult, error) {
	pool, err := s.pools.GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SweepResult{}, domainError(ErrPoolNotFound)
		}
		return SweepResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool")
	}
	isMember, err := s.pools.IsMember(ctx, poolID, actor)
	if err != nil {
		return SweepResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pool membership")
	}
	resource := authz.Authorizable{Kind: authz.KindPool, OwnerID: pool.OwnerUserID, PoolOwnerID: pool.OwnerUserID, ActorIsMember: isMember}
	if !s.authz.Authorize(actor, authz.OpProcessExpired, resource) {
		return SweepResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "only pool members can process expired payouts")
	}
	return s.SweepExpired(ctx, &poolID)
}

// SweepAll sweeps every pool holding an expired round, one pool per worker.
func (s *service) SweepAll(ctx context.Context) (SweepResult, error) {
	poolIDs, err := s.repo.ListPoolsWithExpired(ctx, s.now())
	if err != nil {
		return SweepResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pools with expired payouts")
	}
	if len(poolIDs) == 0 {
		return SweepResult{}, nil
	}

	workers := min(s.cfg.SweepWorkers, len(poolIDs))
	pool := pond.NewPool(workers, pond.WithQueueSize(len(poolIDs)))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var (
		mu    sync.Mutex
		total SweepResult
		errs  error
	)
	for _, id := range poolIDs {
		poolID := id
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			res, err := s.SweepExpired(groupCtx, &poolID)
			mu.Lock()
			defer mu.Unlock()
			total.add(res)
			errs = multierr.Append(errs, err)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		errs = multierr.Append(errs, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return total, errs
}

// finalizeExpired closes one expired round in its own transaction. With wait
// set it blocks on the row lock, otherwise a row held elsewhere is skipped.
// It reports whether this call did the finalization.
func (s *service) finalizeExpired(ctx context.Context, payoutID uuid.UUID, wait bool) (bool, error) {
	var closed *models.PoolPayout
	var decided verdict
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		closed = nil
		repo := s.repo.WithTx(tx)
		now := s.now()

		var payout *models.PoolPayout
		var err error
		if wait {
			payout, err = repo.LockByID(ctx, payoutID)
		} else {
			payout, err = repo.LockExpired(ctx, payoutID, now)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock expired payout")
		}
		if !awaitingFinalization(payout, now) {
			return nil
		}

		v, err := s.finalizeLocked(ctx, tx, payout, now)
		if err != nil {
			return err
		}
		closed, decided = payout, v
		return nil
	})
	if err != nil {
		return false, err
	}
	if closed == nil {
		return false, nil
	}
	s.recordFinalized(ctx, closed, decided)
	return true, nil
}

// finalizeLocked closes a round whose row tx already holds.
func (s *service) finalizeLocked(ctx context.Context, tx *gorm.DB, payout *models.PoolPayout, now time.Time) (verdict, error) {
	settings, err := s.settings.GetTx(ctx, tx, payout.PoolID)
	if err != nil {
		return verdict{}, err
	}
	tally, _, err := s.votes.Tally(ctx, tx, payout.ID)
	if err != nil {
		return verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tally votes")
	}
	memberCount, err := s.pools.WithTx(tx).CountMembers(ctx, payout.PoolID)
	if err != nil {
		return verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pool members")
	}

	from := payout.Status
	v := finalize(payout, settings, roundFacts{tally: tally, memberCount: memberCount, now: now})
	if err := s.applyVerdict(ctx, tx, payout, from, v, uuid.Nil, true); err != nil {
		return verdict{}, err
	}
	return v, nil
}

// applyVerdict persists the evaluated payout and, when the round closed,
// releases the reservation for failed outcomes and queues the events.
func (s *service) applyVerdict(ctx context.Context, tx *gorm.DB, payout *models.PoolPayout, from enums.PayoutStatus, v verdict, actor uuid.UUID, expired bool) error {
	if err := s.repo.WithTx(tx).Save(ctx, payout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout")
	}
	if !v.decided() {
		return nil
	}
	if v.releaseReservation {
		if _, err := s.ledger.Credit(ctx, tx, entryFor(payout, "payout reservation released: "+v.reason)); err != nil {
			return err
		}
	}

	event := payloads.PayoutVotingFinalizedEvent{
		PayoutID:           payout.ID,
		PoolID:             payout.PoolID,
		Status:             payout.Status,
		ApprovalPercentage: payout.ApprovalPercentage,
		TotalVotes:         payout.TotalVotes,
		Reason:             v.reason,
		Expired:            expired,
	}
	if payout.VotingResult != nil {
		event.Result = *payout.VotingResult
	}
	if err := s.emitOnce(ctx, tx, enums.EventPayoutVotingFinalized, payout, actor, event); err != nil {
		return err
	}
	if payout.Status != from {
		return s.emitStatusChanged(ctx, tx, payout, from, actor)
	}
	return nil
}

func (s *service) recordFinalized(ctx context.Context, payout *models.PoolPayout, v verdict) {
	s.metrics.IncFinalized(string(v.outcome))
	fields := map[string]any{
		"outcome":             v.outcome,
		"status":              payout.Status,
		"approval_percentage": payout.ApprovalPercentage.StringFixed(2),
		"total_votes":         payout.TotalVotes,
	}
	if v.reason != "" {
		fields["reason"] = v.reason
	}
	s.info(s.withFields(s.payoutContext(ctx, payout), fields), "payout voting finalized")
}

// loadFresh reads a payout, finalizing it first when its round has elapsed,
// so callers never observe an active round past its deadline.
func (s *service) loadFresh(ctx context.Context, payoutID uuid.UUID) (*models.PoolPayout, error) {
	payout, err := s.findPayout(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	if !awaitingFinalization(payout, s.now()) {
		return payout, nil
	}
	if _, err := s.finalizeExpired(ctx, payoutID, true); err != nil {
		return nil, err
	}
	return s.findPayout(ctx, s.repo, payoutID)
}

// sweepForRead finalizes a pool's elapsed rounds ahead of a listing, waiting
// out rows locked by a concurrent finalizer. Failures are logged; each failed
// row stays for the next sweep.
func (s *service) sweepForRead(ctx context.Context, poolID uuid.UUID) {
	if !s.cfg.SweepOnRead {
		return
	}
	if _, err := s.sweep(ctx, &poolID, true); err != nil {
		logCtx := ctx
		if s.logg != nil {
			logCtx = s.logg.WithPoolID(ctx, poolID.String())
		}
		s.logError(logCtx, "sweep expired payouts before read", err)
	}
}

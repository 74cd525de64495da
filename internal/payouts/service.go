package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/authz"
	"github.com/angelmondragon/poolfund-backend/internal/ledger"
	"github.com/angelmondragon/poolfund-backend/internal/pools"
	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	dbpkg "github.com/angelmondragon/poolfund-backend/pkg/db"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/poolfund-backend/pkg/pagination"
)

const (
	minVotingDurationHours = 1
	maxVotingDurationHours = 720
	maxDescriptionLength   = 500
)

// Service is the payout voting and settlement engine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PoolPayout, error)
	StartVoting(ctx context.Context, input StartVotingInput) (*models.PoolPayout, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.PoolPayout, error)
	Cancel(ctx context.Context, input CancelInput) (*models.PoolPayout, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.PoolPayout, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Stats(ctx context.Context, poolID uuid.UUID) (*Stats, error)
	EligibleMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error)
	ListTransactions(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error)

	CastVote(ctx context.Context, input CastVoteInput) (*CastVoteResult, error)
	CanVote(ctx context.Context, payoutID, userID uuid.UUID) (*Eligibility, error)
	GetResults(ctx context.Context, payoutID uuid.UUID) (*VotingResults, error)
	GetEligibleVoters(ctx context.Context, payoutID uuid.UUID) ([]EligibleVoter, error)
	VotingStatus(ctx context.Context, payoutID uuid.UUID) (*VotingStatusView, error)

	ProcessExpired(ctx context.Context, poolID, actor uuid.UUID) (SweepResult, error)
	SweepExpired(ctx context.Context, poolID *uuid.UUID) (SweepResult, error)
	SweepAll(ctx context.Context) (SweepResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type settingsReader interface {
	GetTx(ctx context.Context, tx *gorm.DB, poolID uuid.UUID) (*models.PoolVotingSettings, error)
}

type ServiceParams struct {
	Config     config.VotingConfig
	Tx         txRunner
	Repo       Repository
	Pools      pools.Repository
	Settings   settingsReader
	Votes      *votes.Ledger
	Ledger     ledger.Service
	Outbox     outboxPublisher
	Authorizer authz.Authorizer
	Metrics    *metrics.PayoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	cfg      config.VotingConfig
	tx       txRunner
	repo     Repository
	pools    pools.Repository
	settings settingsReader
	votes    *votes.Ledger
	ledger   ledger.Service
	outbox   outboxPublisher
	authz    authz.Authorizer
	metrics  *metrics.PayoutMetrics
	logg     *logger.Logger
	clock    func() time.Time
}

// NewService wires the payout engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Pools == nil {
		return nil, fmt.Errorf("pools repository required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("voting settings required")
	}
	if params.Votes == nil {
		return nil, fmt.Errorf("vote ledger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("payout ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Authorizer == nil {
		params.Authorizer = authz.NewPolicy()
	}
	if params.Config.SweepBatchSize <= 0 {
		params.Config.SweepBatchSize = 20
	}
	if params.Config.SweepWorkers <= 0 {
		params.Config.SweepWorkers = 4
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		cfg:      params.Config,
		tx:       params.Tx,
		repo:     params.Repo,
		pools:    params.Pools,
		settings: params.Settings,
		votes:    params.Votes,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		authz:    params.Authorizer,
		metrics:  params.Metrics,
		logg:     params.Logger,
		clock:    params.Now,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// runTx retries fn once when the database aborts it for a serialization
// failure or deadlock.
func (s *service) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.tx.WithTx(ctx, fn)
	if err == nil || !dbpkg.IsRetryable(err) {
		return err
	}
	s.warn(ctx, "payout transaction aborted by a concurrent update, retrying")
	err = s.tx.WithTx(ctx, fn)
	if err != nil && dbpkg.IsRetryable(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout was modified concurrently, retry the request")
	}
	return err
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PoolPayout, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var created *models.PoolPayout
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		poolRepo := s.pools.WithTx(tx)
		pool, err := poolRepo.LockPool(ctx, input.PoolID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainError(ErrPoolNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool")
		}

		isMember, err := poolRepo.IsMember(ctx, pool.ID, input.CreatedBy)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pool membership")
		}
		resource := authz.Authorizable{Kind: authz.KindPool, OwnerID: pool.OwnerUserID, PoolOwnerID: pool.OwnerUserID, ActorIsMember: isMember}
		if !s.authz.Authorize(input.CreatedBy, authz.OpCreatePayout, resource) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only pool members can request payouts")
		}

		recipient, err := poolRepo.GetMember(ctx, pool.ID, input.RecipientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainError(ErrRecipientNotMember)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
		}
		if input.Amount.GreaterThan(pool.TotalContributed) {
			return domainError(ErrInsufficientPoolBalance).WithDetails(map[string]any{
				"amount":       input.Amount.String(),
				"pool_balance": pool.TotalContributed.String(),
			})
		}
		if input.Amount.GreaterThan(recipient.TotalContributed) {
			return domainError(ErrInsufficientMemberBalance).WithDetails(map[string]any{
				"amount":         input.Amount.String(),
				"member_balance": recipient.TotalContributed.String(),
			})
		}

		settings, err := s.settings.GetTx(ctx, tx, pool.ID)
		if err != nil {
			return err
		}
		if input.EnableVoting && !settings.VotingEnabled {
			return domainError(ErrVotingNotEnabledForPool)
		}

		payout := &models.PoolPayout{
			PoolID:             pool.ID,
			RecipientID:        input.RecipientID,
			CreatedBy:          input.CreatedBy,
			Amount:             input.Amount,
			Description:        strings.TrimSpace(input.Description),
			ApprovalPercentage: decimal.Zero,
		}
		if input.EnableVoting {
			openVoting(payout, s.now(), settings.VotingDurationHours)
		} else {
			payout.Status = enums.PayoutStatusPending
			payout.VotingStatus = enums.VotingStatusNotStarted
			if !settings.VotingEnabled {
				payout.VotingStatus = enums.VotingStatusDisabledByPool
			}
		}

		if err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		if _, err := s.ledger.Debit(ctx, tx, entryFor(payout, "payout reserved")); err != nil {
			return err
		}
		if err := s.emitOnce(ctx, tx, enums.EventPayoutCreated, payout, input.CreatedBy, payloads.PayoutCreatedEvent{
			PayoutID:      payout.ID,
			PoolID:        payout.PoolID,
			RecipientID:   payout.RecipientID,
			CreatedBy:     payout.CreatedBy,
			Amount:        payout.Amount,
			Status:        payout.Status,
			VotingEnabled: payout.VotingEnabled,
		}); err != nil {
			return err
		}
		created = payout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.info(s.payoutContext(ctx, created), "payout created")
	return created, nil
}

func (s *service) StartVoting(ctx context.Context, input StartVotingInput) (*models.PoolPayout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.DurationHours != nil && (*input.DurationHours < minVotingDurationHours || *input.DurationHours > maxVotingDurationHours) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("voting duration must be between %d and %d hours", minVotingDurationHours, maxVotingDurationHours))
	}

	var started *models.PoolPayout
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		payout, err := s.lockPayout(ctx, tx, input.PayoutID)
		if err != nil {
			return err
		}
		if err := s.authorizePayout(ctx, tx, input.Actor, authz.OpStartVoting, payout); err != nil {
			return err
		}
		if payout.Status != enums.PayoutStatusPending {
			return domainError(ErrInvalidStatusTransition).WithDetails(map[string]any{"status": payout.Status})
		}
		if payout.VotingStatus != enums.VotingStatusNotStarted && payout.VotingStatus != enums.VotingStatusDisabledByPool {
			return domainError(ErrInvalidStatusTransition).WithDetails(map[string]any{"voting_status": payout.VotingStatus})
		}

		settings, err := s.settings.GetTx(ctx, tx, payout.PoolID)
		if err != nil {
			return err
		}
		if !settings.VotingEnabled {
			return domainError(ErrVotingNotEnabledForPool)
		}

		duration := settings.VotingDurationHours
		if input.DurationHours != nil {
			duration = *input.DurationHours
		}
		from := payout.Status
		openVoting(payout, s.now(), duration)

		if err := s.repo.WithTx(tx).Save(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start payout voting")
		}
		if err := s.emitStatusChanged(ctx, tx, payout, from, input.Actor); err != nil {
			return err
		}
		started = payout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.info(s.withFields(s.payoutContext(ctx, started), map[string]any{"voting_ends_at": started.VotingEndsAt}), "payout voting started")
	return started, nil
}

var allowedTransitions = map[enums.PayoutStatus][]enums.PayoutStatus{
	enums.PayoutStatusPending: {
		enums.PayoutStatusProcessing,
		enums.PayoutStatusCompleted,
		enums.PayoutStatusFailed,
		enums.PayoutStatusCancelled,
	},
	enums.PayoutStatusPendingVoting: {
		enums.PayoutStatusProcessing,
		enums.PayoutStatusCompleted,
		enums.PayoutStatusFailed,
		enums.PayoutStatusCancelled,
	},
	enums.PayoutStatusProcessing: {
		enums.PayoutStatusCompleted,
		enums.PayoutStatusFailed,
		enums.PayoutStatusCancelled,
	},
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.PoolPayout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payout status %q", input.Status))
	}
	if input.Status == enums.PayoutStatusPendingVoting {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the start voting operation to open voting")
	}
	reason := ""
	if input.FailureReason != nil {
		reason = strings.TrimSpace(*input.FailureReason)
	}
	return s.transition(ctx, input.PayoutID, input.Actor, authz.OpUpdateStatus, input.Status, reason)
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.PoolPayout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	return s.transition(ctx, input.PayoutID, input.Actor, authz.OpCancelPayout, enums.PayoutStatusCancelled, strings.TrimSpace(input.Reason))
}

func (s *service) transition(ctx context.Context, payoutID, actor uuid.UUID, op authz.Operation, to enums.PayoutStatus, reason string) (*models.PoolPayout, error) {
	// an elapsed round is closed first so the move is judged against its result
	if _, err := s.loadFresh(ctx, payoutID); err != nil {
		return nil, err
	}

	var updated *models.PoolPayout
	var from enums.PayoutStatus
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		payout, err := s.lockPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if err := s.authorizePayout(ctx, tx, actor, op, payout); err != nil {
			return err
		}
		now := s.now()
		if err := checkTransition(payout, to, now); err != nil {
			return err
		}

		from = payout.Status
		payout.Status = to
		switch to {
		case enums.PayoutStatusCompleted:
			payout.CompletedAt = &now
			if _, err := s.ledger.RecordSettlement(ctx, tx, entryFor(payout, "payout settled")); err != nil {
				return err
			}
		case enums.PayoutStatusFailed, enums.PayoutStatusCancelled:
			// a finished round keeps its recorded result
			if payout.VotingStatus == enums.VotingStatusActive ||
				(to == enums.PayoutStatusCancelled && payout.VotingStatus != enums.VotingStatusCompleted) {
				payout.VotingStatus = enums.VotingStatusCancelled
			}
			if reason != "" {
				payout.FailureReason = &reason
			}
			if to == enums.PayoutStatusCancelled {
				payout.CancelledAt = &now
			}
			if _, err := s.ledger.Credit(ctx, tx, entryFor(payout, "payout reservation released")); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).Save(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout status")
		}
		if to == enums.PayoutStatusCancelled {
			err = s.emitOnce(ctx, tx, enums.EventPayoutCancelled, payout, actor, payloads.PayoutCancelledEvent{
				PayoutID:       payout.ID,
				PoolID:         payout.PoolID,
				ReleasedAmount: payout.Amount,
				Reason:         reason,
				CancelledAt:    now,
			})
		} else {
			err = s.emitStatusChanged(ctx, tx, payout, from, actor)
		}
		if err != nil {
			return err
		}
		updated = payout
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.withFields(s.payoutContext(ctx, updated), map[string]any{
		"from_status": from,
		"to_status":   updated.Status,
	})
	s.info(logCtx, "payout status updated")
	return updated, nil
}

// checkTransition enforces the status graph plus the voting guards on it.
func checkTransition(payout *models.PoolPayout, to enums.PayoutStatus, now time.Time) error {
	invalid := func(reason string) error {
		return domainError(ErrInvalidStatusTransition).WithDetails(map[string]any{
			"from":   payout.Status,
			"to":     to,
			"reason": reason,
		})
	}

	allowed := false
	for _, candidate := range allowedTransitions[payout.Status] {
		if candidate == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return invalid("transition not allowed")
	}

	if payout.Status == enums.PayoutStatusPendingVoting && to == enums.PayoutStatusProcessing {
		approved := payout.VotingStatus == enums.VotingStatusCompleted &&
			payout.VotingResult != nil && *payout.VotingResult == enums.VotingResultApproved
		if !approved {
			return invalid("voting has not approved the payout")
		}
	}
	if to == enums.PayoutStatusCompleted && !canComplete(payout, now) {
		return invalid("voting must approve the payout and its period must end before completion")
	}
	return nil
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.PoolPayout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	return s.loadFresh(ctx, payoutID)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.PoolID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pool id is required")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if params.VotingStatus != nil && !params.VotingStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid voting status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err := s.ensurePool(ctx, params.PoolID); err != nil {
		return nil, err
	}
	s.sweepForRead(ctx, params.PoolID)

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		poolID:       params.PoolID,
		status:       params.Status,
		votingStatus: params.VotingStatus,
		cursor:       cursor,
		limit:        limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}

	items, next := pagination.Trim(rows, limit, func(p models.PoolPayout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) Stats(ctx context.Context, poolID uuid.UUID) (*Stats, error) {
	if poolID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pool id is required")
	}
	if err := s.ensurePool(ctx, poolID); err != nil {
		return nil, err
	}
	s.sweepForRead(ctx, poolID)

	byStatus, err := s.repo.CountByStatus(ctx, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payouts by status")
	}
	byVoting, err := s.repo.CountByVotingStatus(ctx, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payouts by voting status")
	}
	completedTotal, err := s.repo.SumAmount(ctx, poolID, enums.PayoutStatusCompleted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed payouts")
	}
	reservedTotal, err := s.repo.SumAmount(ctx, poolID, enums.PayoutStatusPending, enums.PayoutStatusPendingVoting, enums.PayoutStatusProcessing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reserved payouts")
	}

	stats := &Stats{
		PoolID:         poolID,
		ByStatus:       byStatus,
		ByVotingStatus: byVoting,
		SuccessRate:    decimal.Zero,
		CompletedTotal: completedTotal,
		ReservedTotal:  reservedTotal,
	}
	for _, n := range byStatus {
		stats.Total += n
	}
	closed := byStatus[enums.PayoutStatusCompleted] + byStatus[enums.PayoutStatusFailed] + byStatus[enums.PayoutStatusCancelled]
	if closed > 0 {
		stats.SuccessRate = decimal.NewFromInt(byStatus[enums.PayoutStatusCompleted]).Mul(hundred).DivRound(decimal.NewFromInt(closed), 2)
	}
	return stats, nil
}

// EligibleMembers lists the members a payout could be requested for.
func (s *service) EligibleMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error) {
	if poolID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pool id is required")
	}
	if err := s.ensurePool(ctx, poolID); err != nil {
		return nil, err
	}
	members, err := s.pools.ListContributingMembers(ctx, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contributing members")
	}
	return members, nil
}

func (s *service) ListTransactions(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if _, err := s.findPayout(ctx, s.repo, payoutID); err != nil {
		return nil, err
	}
	return s.ledger.ListByPayout(ctx, payoutID)
}

func validateCreate(input CreateInput) error {
	details := map[string]string{}
	if input.PoolID == uuid.Nil {
		details["poolId"] = "required"
	}
	if input.RecipientID == uuid.Nil {
		details["recipientId"] = "required"
	}
	if input.CreatedBy == uuid.Nil {
		details["createdBy"] = "required"
	}
	if !input.Amount.IsPositive() {
		details["amount"] = "must be greater than zero"
	} else if !input.Amount.Equal(input.Amount.Round(2)) {
		details["amount"] = "must have at most two decimal places"
	}
	if len(input.Description) > maxDescriptionLength {
		details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLength)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payout").WithDetails(details)
	}
	return nil
}

func openVoting(payout *models.PoolPayout, now time.Time, durationHours int) {
	ends := now.Add(time.Duration(durationHours) * time.Hour)
	payout.Status = enums.PayoutStatusPendingVoting
	payout.VotingEnabled = true
	payout.VotingStatus = enums.VotingStatusActive
	payout.VotingResult = nil
	payout.VotingStartsAt = &now
	payout.VotingEndsAt = &ends
}

func entryFor(payout *models.PoolPayout, description string) ledger.Entry {
	return ledger.Entry{
		PayoutID:     payout.ID,
		PoolID:       payout.PoolID,
		MemberUserID: payout.RecipientID,
		Amount:       payout.Amount,
		Description:  description,
	}
}

func (s *service) ensurePool(ctx context.Context, poolID uuid.UUID) error {
	if _, err := s.pools.GetPool(ctx, poolID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainError(ErrPoolNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool")
	}
	return nil
}

func (s *service) findPayout(ctx context.Context, repo Repository, payoutID uuid.UUID) (*models.PoolPayout, error) {
	payout, err := repo.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainError(ErrPayoutNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) lockPayout(ctx context.Context, tx *gorm.DB, payoutID uuid.UUID) (*models.PoolPayout, error) {
	payout, err := s.repo.WithTx(tx).LockByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainError(ErrPayoutNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
	}
	return payout, nil
}

func (s *service) authorizePayout(ctx context.Context, tx *gorm.DB, actor uuid.UUID, op authz.Operation, payout *models.PoolPayout) error {
	pool, err := s.pools.WithTx(tx).GetPool(ctx, payout.PoolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainError(ErrPoolNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool")
	}
	resource := authz.Authorizable{Kind: authz.KindPayout, OwnerID: payout.CreatedBy, PoolOwnerID: pool.OwnerUserID}
	if !s.authz.Authorize(actor, op, resource) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the payout creator or pool owner can do this")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payout *models.PoolPayout, actor uuid.UUID, data any) error {
	if err := s.outbox.Emit(ctx, tx, s.payoutEvent(eventType, payout, actor, data)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout event")
	}
	return nil
}

// emitOnce queues an event that may exist at most once per payout.
func (s *service) emitOnce(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payout *models.PoolPayout, actor uuid.UUID, data any) error {
	if err := s.outbox.EmitOnce(ctx, tx, s.payoutEvent(eventType, payout, actor, data)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout event")
	}
	return nil
}

func (s *service) payoutEvent(eventType enums.OutboxEventType, payout *models.PoolPayout, actor uuid.UUID, data any) outbox.Event {
	event := outbox.Event{
		EventType:     eventType,
		AggregateType: enums.AggregatePoolPayout,
		AggregateID:   payout.ID,
		Data:          data,
		OccurredAt:    s.now(),
	}
	if actor != uuid.Nil {
		poolID := payout.PoolID
		event.Actor = &outbox.Actor{UserID: actor, PoolID: &poolID}
	}
	return event
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, payout *models.PoolPayout, from enums.PayoutStatus, actor uuid.UUID) error {
	return s.emit(ctx, tx, enums.EventPayoutStatusChanged, payout, actor, payloads.PayoutStatusChangedEvent{
		PayoutID:      payout.ID,
		PoolID:        payout.PoolID,
		From:          from,
		To:            payout.Status,
		VotingStatus:  payout.VotingStatus,
		FailureReason: payout.FailureReason,
	})
}

func (s *service) payoutContext(ctx context.Context, payout *models.PoolPayout) context.Context {
	if s.logg == nil || payout == nil {
		return ctx
	}
	ctx = s.logg.WithPoolID(ctx, payout.PoolID.String())
	return s.logg.WithPayoutID(ctx, payout.ID.String())
}

func (s *service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

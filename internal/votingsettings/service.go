package votingsettings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/authz"
	"github.com/angelmondragon/poolfund-backend/internal/pools"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
)

// Service exposes the per-pool voting settings store.
type Service interface {
	Get(ctx context.Context, poolID uuid.UUID) (*models.PoolVotingSettings, error)
	GetTx(ctx context.Context, tx *gorm.DB, poolID uuid.UUID) (*models.PoolVotingSettings, error)
	Update(ctx context.Context, actor uuid.UUID, poolID uuid.UUID, input UpdateInput) (*models.PoolVotingSettings, error)
	Toggle(ctx context.Context, actor uuid.UUID, poolID uuid.UUID, enabled bool) (*models.PoolVotingSettings, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type ServiceParams struct {
	Repo       Repository
	Pools      pools.Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Authorizer authz.Authorizer
	Logger     *logger.Logger
}

type service struct {
	repo   Repository
	pools  pools.Repository
	tx     txRunner
	outbox outboxPublisher
	authz  authz.Authorizer
	logg   *logger.Logger
}

// NewService wires the settings store.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("voting settings repository required")
	}
	if params.Pools == nil {
		return nil, fmt.Errorf("pools repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Authorizer == nil {
		params.Authorizer = authz.NewPolicy()
	}
	return &service{
		repo:   params.Repo,
		pools:  params.Pools,
		tx:     params.Tx,
		outbox: params.Outbox,
		authz:  params.Authorizer,
		logg:   params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, poolID uuid.UUID) (*models.PoolVotingSettings, error) {
	var settings *models.PoolVotingSettings
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.loadPool(ctx, tx, poolID); err != nil {
			return err
		}
		var err error
		settings, err = s.GetTx(ctx, tx, poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// GetTx returns the pool's settings, inserting the defaults when the pool has
// never been configured. It runs inside the caller's transaction.
func (s *service) GetTx(ctx context.Context, tx *gorm.DB, poolID uuid.UUID) (*models.PoolVotingSettings, error) {
	repo := s.repo.WithTx(tx)
	settings, err := repo.FindByPoolID(ctx, poolID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voting settings")
	}

	defaults := &models.PoolVotingSettings{PoolID: poolID}
	apply(defaults, Defaults())
	if err := repo.CreateIfMissing(ctx, defaults); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create default voting settings")
	}
	// re-read: a concurrent request may have inserted the row first
	settings, err = repo.FindByPoolID(ctx, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voting settings")
	}
	return settings, nil
}

func (s *service) Update(ctx context.Context, actor uuid.UUID, poolID uuid.UUID, input UpdateInput) (*models.PoolVotingSettings, error) {
	if errs := Validate(input); len(errs) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid voting settings").WithDetails(errs)
	}

	var updated *models.PoolVotingSettings
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pool, err := s.loadPool(ctx, tx, poolID)
		if err != nil {
			return err
		}
		resource := authz.Authorizable{Kind: authz.KindVotingSettings, OwnerID: pool.OwnerUserID, PoolOwnerID: pool.OwnerUserID}
		if !s.authz.Authorize(actor, authz.OpUpdateSettings, resource) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the pool owner can change voting settings")
		}

		settings, err := s.GetTx(ctx, tx, poolID)
		if err != nil {
			return err
		}
		apply(settings, input)
		if err := s.repo.WithTx(tx).Save(ctx, settings); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save voting settings")
		}

		event := outbox.Event{
			EventType:     enums.EventVotingSettingsUpdated,
			AggregateType: enums.AggregatePoolVotingSettings,
			AggregateID:   settings.ID,
			Actor:         &outbox.Actor{UserID: actor, PoolID: &poolID},
			Data: payloads.VotingSettingsUpdatedEvent{
				PoolID:        poolID,
				VotingEnabled: settings.VotingEnabled,
				VotingType:    settings.VotingType,
				ThresholdPct:  settings.VotingThresholdPct,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit voting settings event")
		}
		updated = settings
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithPoolID(ctx, poolID.String())
		s.logg.Info(s.logg.WithField(logCtx, "voting_enabled", updated.VotingEnabled), "voting settings updated")
	}
	return updated, nil
}

func (s *service) Toggle(ctx context.Context, actor uuid.UUID, poolID uuid.UUID, enabled bool) (*models.PoolVotingSettings, error) {
	return s.Update(ctx, actor, poolID, UpdateInput{VotingEnabled: &enabled})
}

func (s *service) loadPool(ctx context.Context, tx *gorm.DB, poolID uuid.UUID) (*models.Pool, error) {
	if poolID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pool id is required")
	}
	pool, err := s.pools.WithTx(tx).GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool")
	}
	return pool, nil
}

func apply(settings *models.PoolVotingSettings, input UpdateInput) {
	if input.VotingEnabled != nil {
		settings.VotingEnabled = *input.VotingEnabled
	}
	if input.VotingThresholdPct != nil {
		settings.VotingThresholdPct = *input.VotingThresholdPct
	}
	if input.VotingDurationHours != nil {
		settings.VotingDurationHours = *input.VotingDurationHours
	}
	if input.MinVoters != nil {
		settings.MinVoters = *input.MinVoters
	}
	if input.VotingType != nil {
		settings.VotingType = *input.VotingType
	}
	if input.AutoApprove != nil {
		settings.AutoApprove = *input.AutoApprove
	}
	if input.AllowAbstain != nil {
		settings.AllowAbstain = *input.AllowAbstain
	}
	if input.RequireQuorum != nil {
		settings.RequireQuorum = *input.RequireQuorum
	}
	if input.QuorumPct != nil {
		settings.QuorumPct = *input.QuorumPct
	}
}

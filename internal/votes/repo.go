package votes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/repo"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
)

// Repository persists payout votes, one row per (payout, voter).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, payoutID, voterID uuid.UUID) (*models.PoolPayoutVote, error)
	Create(ctx context.Context, vote *models.PoolPayoutVote) error
	Update(ctx context.Context, vote *models.PoolPayoutVote) error
	ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutVote, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a votes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Find(ctx context.Context, payoutID, voterID uuid.UUID) (*models.PoolPayoutVote, error) {
	var vote models.PoolPayoutVote
	err := r.DB(ctx).
		Where("payout_id = ? AND voter_id = ?", payoutID, voterID).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *repository) Create(ctx context.Context, vote *models.PoolPayoutVote) error {
	return r.DB(ctx).Create(vote).Error
}

func (r *repository) Update(ctx context.Context, vote *models.PoolPayoutVote) error {
	return r.DB(ctx).
		Model(vote).
		Select("vote_type", "voting_power", "comments", "updated_at").
		Updates(vote).Error
}

func (r *repository) ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutVote, error) {
	var rows []models.PoolPayoutVote
	err := r.DB(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

package votingsettings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/poolfund-backend/internal/repo"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
)

// Repository persists the single settings row per pool.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByPoolID(ctx context.Context, poolID uuid.UUID) (*models.PoolVotingSettings, error)
	CreateIfMissing(ctx context.Context, settings *models.PoolVotingSettings) error
	Save(ctx context.Context, settings *models.PoolVotingSettings) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a voting settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) FindByPoolID(ctx context.Context, poolID uuid.UUID) (*models.PoolVotingSettings, error) {
	var settings models.PoolVotingSettings
	if err := r.DB(ctx).Where("pool_id = ?", poolID).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// CreateIfMissing inserts settings unless the pool already has a row. It
// never fails on the pool_id unique key, so it is safe inside a transaction.
func (r *repository) CreateIfMissing(ctx context.Context, settings *models.PoolVotingSettings) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pool_id"}}, DoNothing: true}).
		Create(settings).Error
}

// Save writes every column, including false booleans and zero values.
func (r *repository) Save(ctx context.Context, settings *models.PoolVotingSettings) error {
	return r.DB(ctx).
		Model(settings).
		Select("*").
		Omit("id", "pool_id", "created_at").
		Updates(settings).Error
}

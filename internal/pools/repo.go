package pools

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/poolfund-backend/internal/repo"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// Repository exposes read snapshots and balance columns for pools and their
// members. Pool CRUD lives elsewhere; payouts only need lookups, row locks and
// the two running balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error)
	LockPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error)
	ListMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error)
	ListContributingMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error)
	GetMember(ctx context.Context, poolID, userID uuid.UUID) (*models.PoolMember, error)
	LockMember(ctx context.Context, poolID, userID uuid.UUID) (*models.PoolMember, error)
	IsMember(ctx context.Context, poolID, userID uuid.UUID) (bool, error)
	CountMembers(ctx context.Context, poolID uuid.UUID) (int64, error)
	UpdatePoolBalance(ctx context.Context, poolID uuid.UUID, balance decimal.Decimal) error
	UpdateMemberBalance(ctx context.Context, memberID uuid.UUID, balance decimal.Decimal) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a pools repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	if err := r.DB(ctx).Where("id = ?", poolID).First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *repository) LockPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", poolID).
		First(&pool).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *repository) ListMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error) {
	var members []models.PoolMember
	err := r.DB(ctx).
		Where("pool_id = ? AND status = ?", poolID, enums.PoolMemberStatusActive).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListContributingMembers(ctx context.Context, poolID uuid.UUID) ([]models.PoolMember, error) {
	var members []models.PoolMember
	err := r.DB(ctx).
		Where("pool_id = ? AND status = ? AND total_contributed > 0", poolID, enums.PoolMemberStatusActive).
		Order("total_contributed DESC").
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) GetMember(ctx context.Context, poolID, userID uuid.UUID) (*models.PoolMember, error) {
	var member models.PoolMember
	err := r.DB(ctx).
		Where("pool_id = ? AND user_id = ? AND status = ?", poolID, userID, enums.PoolMemberStatusActive).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// LockMember locks the membership row regardless of status so a reservation
// can still be released to a member who has since left.
func (r *repository) LockMember(ctx context.Context, poolID, userID uuid.UUID) (*models.PoolMember, error) {
	var member models.PoolMember
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pool_id = ? AND user_id = ?", poolID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) IsMember(ctx context.Context, poolID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.PoolMember{}).
		Where("pool_id = ? AND user_id = ? AND status = ?", poolID, userID, enums.PoolMemberStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CountMembers(ctx context.Context, poolID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.PoolMember{}).
		Where("pool_id = ? AND status = ?", poolID, enums.PoolMemberStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdatePoolBalance(ctx context.Context, poolID uuid.UUID, balance decimal.Decimal) error {
	return r.DB(ctx).
		Model(&models.Pool{}).
		Where("id = ?", poolID).
		Update("total_contributed", balance).Error
}

func (r *repository) UpdateMemberBalance(ctx context.Context, memberID uuid.UUID, balance decimal.Decimal) error {
	return r.DB(ctx).
		Model(&models.PoolMember{}).
		Where("id = ?", memberID).
		Update("total_contributed", balance).Error
}

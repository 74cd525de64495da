package ledger

import (
	"context"

	"github.com/angelmondragon/poolfund-backend/internal/repo"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for payout balance transactions. Rows are
// append-only; there is no update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PoolPayoutTransaction) error
	ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, txn *models.PoolPayoutTransaction) error {
	return r.DB(ctx).Create(txn).Error
}

func (r *repository) ListByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error) {
	var rows []models.PoolPayoutTransaction
	if err := r.DB(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

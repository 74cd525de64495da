package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/poolfund-backend/internal/repo"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	"github.com/angelmondragon/poolfund-backend/pkg/pagination"
)

// Repository persists payouts and answers the sweep and listing queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.PoolPayout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PoolPayout, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.PoolPayout, error)
	LockExpired(ctx context.Context, id uuid.UUID, now time.Time) (*models.PoolPayout, error)
	Save(ctx context.Context, payout *models.PoolPayout) error
	ListExpiredIDs(ctx context.Context, poolID *uuid.UUID, now time.Time, limit int) ([]uuid.UUID, error)
	ListPoolsWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	List(ctx context.Context, query listQuery) ([]models.PoolPayout, error)
	CountByStatus(ctx context.Context, poolID uuid.UUID) (map[enums.PayoutStatus]int64, error)
	CountByVotingStatus(ctx context.Context, poolID uuid.UUID) (map[enums.VotingStatus]int64, error)
	SumAmount(ctx context.Context, poolID uuid.UUID, statuses ...enums.PayoutStatus) (decimal.Decimal, error)
}

type listQuery struct {
	poolID       uuid.UUID
	status       *enums.PayoutStatus
	votingStatus *enums.VotingStatus
	cursor       *pagination.Cursor
	limit        int
}

type repository struct {
	repo.Base
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, payout *models.PoolPayout) error {
	return r.DB(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PoolPayout, error) {
	var payout models.PoolPayout
	if err := r.DB(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// LockByID takes the payout row lock that serialises votes, status changes and
// finalization of the same payout.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PoolPayout, error) {
	var payout models.PoolPayout
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// LockExpired locks the payout only if it is still an unfinalized expired
// vote and nobody else holds it. gorm.ErrRecordNotFound means skip.
func (r *repository) LockExpired(ctx context.Context, id uuid.UUID, now time.Time) (*models.PoolPayout, error) {
	var payout models.PoolPayout
	err := expiredScope(r.DB(ctx), now).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// Save writes every column of the payout.
func (r *repository) Save(ctx context.Context, payout *models.PoolPayout) error {
	return r.DB(ctx).
		Model(payout).
		Select("*").
		Omit("id", "pool_id", "recipient_id", "created_by", "amount", "created_at").
		Updates(payout).Error
}

func (r *repository) ListExpiredIDs(ctx context.Context, poolID *uuid.UUID, now time.Time, limit int) ([]uuid.UUID, error) {
	query := expiredScope(r.DB(ctx).Model(&models.PoolPayout{}), now)
	if poolID != nil {
		query = query.Where("pool_id = ?", *poolID)
	}
	var ids []uuid.UUID
	err := query.
		Order("voting_ends_at ASC").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListPoolsWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := expiredScope(r.DB(ctx).Model(&models.PoolPayout{}), now).
		Distinct("pool_id").
		Order("pool_id ASC").
		Pluck("pool_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.PoolPayout, error) {
	query := r.DB(ctx).Model(&models.PoolPayout{}).Where("pool_id = ?", q.poolID)
	if q.status != nil {
		query = query.Where("status = ?", *q.status)
	}
	if q.votingStatus != nil {
		query = query.Where("voting_status = ?", *q.votingStatus)
	}
	if q.cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}

	var rows []models.PoolPayout
	if err := query.Order("created_at DESC").Order("id DESC").Limit(q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type statusCount struct {
	Bucket string
	Total  int64
}

func (r *repository) CountByStatus(ctx context.Context, poolID uuid.UUID) (map[enums.PayoutStatus]int64, error) {
	rows, err := r.countBy(ctx, poolID, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[enums.PayoutStatus]int64, len(rows))
	for _, row := range rows {
		out[enums.PayoutStatus(row.Bucket)] = row.Total
	}
	return out, nil
}

func (r *repository) CountByVotingStatus(ctx context.Context, poolID uuid.UUID) (map[enums.VotingStatus]int64, error) {
	rows, err := r.countBy(ctx, poolID, "voting_status")
	if err != nil {
		return nil, err
	}
	out := make(map[enums.VotingStatus]int64, len(rows))
	for _, row := range rows {
		out[enums.VotingStatus(row.Bucket)] = row.Total
	}
	return out, nil
}

func (r *repository) countBy(ctx context.Context, poolID uuid.UUID, column string) ([]statusCount, error) {
	var rows []statusCount
	err := r.DB(ctx).
		Model(&models.PoolPayout{}).
		Select(column+" AS bucket, COUNT(*) AS total").
		Where("pool_id = ?", poolID).
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) SumAmount(ctx context.Context, poolID uuid.UUID, statuses ...enums.PayoutStatus) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := r.DB(ctx).
		Model(&models.PoolPayout{}).
		Select("SUM(amount)").
		Where("pool_id = ? AND status IN ?", poolID, statuses).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func expiredScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where(
		"voting_enabled = ? AND voting_status = ? AND status = ? AND voting_ends_at <= ?",
		true, enums.VotingStatusActive, enums.PayoutStatusPendingVoting, now,
	)
}

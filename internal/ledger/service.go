package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/pools"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/poolfund-backend/pkg/errors"
)

// ErrNegativeBalance signals a mutation that would drive a pool or member
// balance below zero. Callers validate sufficiency first, so this is an
// invariant violation rather than a user error.
var ErrNegativeBalance = errors.New("balance would become negative")

// Service moves the pool and member running balances and records one
// transaction row per movement. Every call must run inside the caller's
// transaction.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error)
	Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error)
	RecordSettlement(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error)
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error)
}

// Entry identifies the balances a payout movement touches.
type Entry struct {
	PayoutID     uuid.UUID
	PoolID       uuid.UUID
	MemberUserID uuid.UUID
	Amount       decimal.Decimal
	Description  string
}

type service struct {
	repo  Repository
	pools pools.Repository
}

// NewService wires a ledger service with its repositories.
func NewService(repo Repository, poolRepo pools.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if poolRepo == nil {
		return nil, fmt.Errorf("pools repository required")
	}
	return &service{repo: repo, pools: poolRepo}, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error) {
	return s.move(ctx, tx, entry, enums.PayoutTransactionDebit)
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error) {
	return s.move(ctx, tx, entry, enums.PayoutTransactionCredit)
}

// RecordSettlement writes a debit row that leaves both balances untouched.
// Completion of a payout whose funds were reserved at creation uses it so the
// audit trail still shows the settlement.
func (s *service) RecordSettlement(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PoolPayoutTransaction, error) {
	if err := validateEntry(tx, entry); err != nil {
		return nil, err
	}
	pool, err := s.pools.WithTx(tx).LockPool(ctx, entry.PoolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pool balance")
	}
	txn := &models.PoolPayoutTransaction{
		PayoutID:        entry.PayoutID,
		PoolID:          entry.PoolID,
		TransactionType: enums.PayoutTransactionDebit,
		Amount:          entry.Amount,
		BalanceBefore:   pool.TotalContributed,
		BalanceAfter:    pool.TotalContributed,
		Description:     entry.Description,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout transaction")
	}
	return txn, nil
}

func (s *service) move(ctx context.Context, tx *gorm.DB, entry Entry, kind enums.PayoutTransactionType) (*models.PoolPayoutTransaction, error) {
	if err := validateEntry(tx, entry); err != nil {
		return nil, err
	}
	poolRepo := s.pools.WithTx(tx)

	pool, err := poolRepo.LockPool(ctx, entry.PoolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pool balance")
	}
	member, err := poolRepo.LockMember(ctx, entry.PoolID, entry.MemberUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock member balance")
	}

	delta := entry.Amount
	if kind == enums.PayoutTransactionDebit {
		delta = delta.Neg()
	}
	poolAfter := pool.TotalContributed.Add(delta)
	memberAfter := member.TotalContributed.Add(delta)
	if poolAfter.IsNegative() || memberAfter.IsNegative() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrNegativeBalance, "payout balance invariant violated").
			WithDetails(map[string]any{
				"pool_balance":   pool.TotalContributed.String(),
				"member_balance": member.TotalContributed.String(),
				"amount":         entry.Amount.String(),
			})
	}

	if err := poolRepo.UpdatePoolBalance(ctx, pool.ID, poolAfter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pool balance")
	}
	if err := poolRepo.UpdateMemberBalance(ctx, member.ID, memberAfter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member balance")
	}

	txn := &models.PoolPayoutTransaction{
		PayoutID:        entry.PayoutID,
		PoolID:          entry.PoolID,
		TransactionType: kind,
		Amount:          entry.Amount,
		BalanceBefore:   pool.TotalContributed,
		BalanceAfter:    poolAfter,
		Description:     entry.Description,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout transaction")
	}
	return txn, nil
}

func (s *service) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.PoolPayoutTransaction, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	rows, err := s.repo.ListByPayoutID(ctx, payoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout transactions")
	}
	return rows, nil
}

func validateEntry(tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if entry.PayoutID == uuid.Nil || entry.PoolID == uuid.Nil || entry.MemberUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout, pool and member ids are required")
	}
	if !entry.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

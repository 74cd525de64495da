// Package dbtest opens throwaway SQLite databases carrying the payout schema.
// It is only imported from _test.go files.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE pools (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		total_contributed NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE pool_members (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		total_contributed NUMERIC NOT NULL DEFAULT 0,
		share_count INTEGER NOT NULL DEFAULT 0,
		tier TEXT NOT NULL DEFAULT 'basic',
		status TEXT NOT NULL DEFAULT 'active',
		joined_at DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (pool_id, user_id)
	);`,
	`CREATE TABLE pool_voting_settings (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL UNIQUE,
		voting_enabled BOOLEAN NOT NULL DEFAULT 0,
		voting_threshold_pct INTEGER NOT NULL DEFAULT 51,
		voting_duration_hours INTEGER NOT NULL DEFAULT 72,
		min_voters INTEGER NOT NULL DEFAULT 1,
		voting_type TEXT NOT NULL DEFAULT 'one_member_one_vote',
		auto_approve BOOLEAN NOT NULL DEFAULT 0,
		allow_abstain BOOLEAN NOT NULL DEFAULT 1,
		require_quorum BOOLEAN NOT NULL DEFAULT 0,
		quorum_pct INTEGER NOT NULL DEFAULT 50,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE pool_payouts (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		failure_reason TEXT,
		voting_enabled BOOLEAN NOT NULL DEFAULT 0,
		voting_status TEXT NOT NULL,
		voting_result TEXT,
		voting_starts_at DATETIME,
		voting_ends_at DATETIME,
		approval_percentage NUMERIC NOT NULL DEFAULT 0,
		approve_votes INTEGER NOT NULL DEFAULT 0,
		reject_votes INTEGER NOT NULL DEFAULT 0,
		abstain_votes INTEGER NOT NULL DEFAULT 0,
		total_votes INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE pool_payout_votes (
		id TEXT PRIMARY KEY,
		payout_id TEXT NOT NULL,
		voter_id TEXT NOT NULL,
		vote_type TEXT NOT NULL,
		voting_power NUMERIC NOT NULL DEFAULT 1,
		comments TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (payout_id, voter_id)
	);`,
	`CREATE TABLE pool_payout_transactions (
		id TEXT PRIMARY KEY,
		payout_id TEXT NOT NULL,
		pool_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		balance_before NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		description TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	);`,
}

// Open returns an isolated in-memory database with the payout schema applied.
// A single connection is kept so transactions see a consistent database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SeedPool inserts a pool owned by ownerID holding balance.
func SeedPool(t *testing.T, conn *gorm.DB, ownerID uuid.UUID, balance decimal.Decimal) *models.Pool {
	t.Helper()
	pool := &models.Pool{OwnerUserID: ownerID, Name: "pool-" + ownerID.String()[:8], TotalContributed: balance}
	require.NoError(t, conn.Create(pool).Error)
	return pool
}

// MemberOption tweaks a seeded member before insert.
type MemberOption func(*models.PoolMember)

func WithShares(n int) MemberOption {
	return func(m *models.PoolMember) { m.ShareCount = n }
}

func WithTier(tier enums.MemberTier) MemberOption {
	return func(m *models.PoolMember) { m.Tier = tier }
}

func WithJoinedAt(at time.Time) MemberOption {
	return func(m *models.PoolMember) { m.JoinedAt = at }
}

func WithStatus(status enums.PoolMemberStatus) MemberOption {
	return func(m *models.PoolMember) { m.Status = status }
}

// SeedMember inserts an active member of pool with the given contributed balance.
func SeedMember(t *testing.T, conn *gorm.DB, poolID uuid.UUID, balance decimal.Decimal, opts ...MemberOption) *models.PoolMember {
	t.Helper()
	member := &models.PoolMember{
		PoolID:           poolID,
		UserID:           uuid.New(),
		TotalContributed: balance,
		Tier:             enums.MemberTierBasic,
		Status:           enums.PoolMemberStatusActive,
		JoinedAt:         time.Now().UTC().Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(member)
	}
	require.NoError(t, conn.Create(member).Error)
	return member
}

// PoolBalance reloads the pool's running balance.
func PoolBalance(t *testing.T, conn *gorm.DB, poolID uuid.UUID) decimal.Decimal {
	t.Helper()
	var pool models.Pool
	require.NoError(t, conn.Where("id = ?", poolID).First(&pool).Error)
	return pool.TotalContributed
}

// MemberBalance reloads a member's running balance.
func MemberBalance(t *testing.T, conn *gorm.DB, memberID uuid.UUID) decimal.Decimal {
	t.Helper()
	var member models.PoolMember
	require.NoError(t, conn.Where("id = ?", memberID).First(&member).Error)
	return member.TotalContributed
}

package payouts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/internal/ledger"
	"github.com/angelmondragon/poolfund-backend/internal/pools"
	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/internal/votingsettings"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/db"
	"github.com/angelmondragon/poolfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
)

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events {
		if existing.EventType == event.EventType && existing.AggregateType == event.AggregateType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) payoutEvents(payoutID uuid.UUID) []enums.OutboxEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []enums.OutboxEventType
	for _, event := range r.events {
		if event.AggregateType == enums.AggregatePoolPayout && event.AggregateID == payoutID {
			out = append(out, event.EventType)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engine struct {
	t        *testing.T
	conn     *gorm.DB
	client   *db.Client
	svc      Service
	settings votingsettings.Service
	outbox   *recordingOutbox
	clock    *testClock
	pool     *models.Pool
	owner    uuid.UUID
}

func newEngine(t *testing.T, poolBalance string) *engine {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	owner := uuid.New()
	pool := dbtest.SeedPool(t, conn, owner, decimal.RequireFromString(poolBalance))

	rec := &recordingOutbox{}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	poolRepo := pools.NewRepository(conn)

	settings, err := votingsettings.NewService(votingsettings.ServiceParams{
		Repo:   votingsettings.NewRepository(conn),
		Pools:  poolRepo,
		Tx:     client,
		Outbox: rec,
	})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), poolRepo)
	require.NoError(t, err)
	voteLedger, err := votes.NewLedger(votes.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Config: config.VotingConfig{
			SweepBatchSize:       20,
			SweepWorkers:         2,
			SweepOnRead:          true,
			DefaultDurationHours: 72,
		},
		Tx:       client,
		Repo:     NewRepository(conn),
		Pools:    poolRepo,
		Settings: settings,
		Votes:    voteLedger,
		Ledger:   ledgerSvc,
		Outbox:   rec,
		Metrics:  metrics.NewPayoutMetrics(prometheus.NewRegistry()),
		Now:      clock.Now,
	})
	require.NoError(t, err)

	return &engine{
		t:        t,
		conn:     conn,
		client:   client,
		svc:      svc,
		settings: settings,
		outbox:   rec,
		clock:    clock,
		pool:     pool,
		owner:    owner,
	}
}

func (e *engine) member(balance string, opts ...dbtest.MemberOption) *models.PoolMember {
	e.t.Helper()
	return dbtest.SeedMember(e.t, e.conn, e.pool.ID, decimal.RequireFromString(balance), opts...)
}

func (e *engine) configure(input votingsettings.UpdateInput) {
	e.t.Helper()
	_, err := e.settings.Update(context.Background(), e.owner, e.pool.ID, input)
	require.NoError(e.t, err)
}

func (e *engine) enableVoting(mutators ...func(*votingsettings.UpdateInput)) {
	e.t.Helper()
	input := votingsettings.UpdateInput{VotingEnabled: boolPtr(true)}
	for _, mutate := range mutators {
		mutate(&input)
	}
	e.configure(input)
}

func (e *engine) create(recipient *models.PoolMember, amount string, voting bool) *models.PoolPayout {
	e.t.Helper()
	payout, err := e.svc.Create(context.Background(), CreateInput{
		PoolID:       e.pool.ID,
		RecipientID:  recipient.UserID,
		CreatedBy:    e.owner,
		Amount:       decimal.RequireFromString(amount),
		Description:  "rent support",
		EnableVoting: voting,
	})
	require.NoError(e.t, err)
	return payout
}

func (e *engine) vote(payoutID uuid.UUID, voter *models.PoolMember, voteType enums.VoteType) *CastVoteResult {
	e.t.Helper()
	result, err := e.svc.CastVote(context.Background(), CastVoteInput{PayoutID: payoutID, VoterID: voter.UserID, VoteType: voteType})
	require.NoError(e.t, err)
	return result
}

func (e *engine) poolBalance() decimal.Decimal {
	e.t.Helper()
	return dbtest.PoolBalance(e.t, e.conn, e.pool.ID)
}

func (e *engine) memberBalance(m *models.PoolMember) decimal.Decimal {
	e.t.Helper()
	return dbtest.MemberBalance(e.t, e.conn, m.ID)
}

func (e *engine) transactions(payoutID uuid.UUID) map[enums.PayoutTransactionType][]models.PoolPayoutTransaction {
	e.t.Helper()
	rows, err := e.svc.ListTransactions(context.Background(), payoutID)
	require.NoError(e.t, err)
	out := map[enums.PayoutTransactionType][]models.PoolPayoutTransaction{}
	for _, row := range rows {
		out[row.TransactionType] = append(out[row.TransactionType], row)
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/registry"
)

type harness struct {
	svc  *Service
	repo *fakeRepo
	pub  *fakePublisher
	dlq  *fakeDLQRepo
	reg  *prometheus.Registry
}

func newHarness(t *testing.T, events []models.OutboxEvent, resolver registryResolver, maxAttempts int, results ...publishResult) *harness {
	t.Helper()
	h := &harness{
		repo: &fakeRepo{events: events},
		pub:  &fakePublisher{results: results},
		dlq:  &fakeDLQRepo{},
		reg:  prometheus.NewRegistry(),
	}
	svc, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:      len(events),
			PollIntervalMS: 100,
			MaxAttempts:    maxAttempts,
		}},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       h.repo,
		Registry:         resolver,
		DLQRepository:    h.dlq,
		PublisherFactory: func(string) publisher { return h.pub },
		Metrics:          metrics.NewOutboxMetrics(h.reg),
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) deliveries(eventType enums.OutboxEventType, o outcome) float64 {
	var total float64
	mfs, _ := h.reg.Gather()
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["event_type"] == string(eventType) && labels["outcome"] == string(o) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func payoutEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.Envelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregatePoolPayout,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func resolvedPayout(poolID *uuid.UUID) *registry.ResolvedEvent {
	env := outbox.Envelope{EventID: uuid.NewString(), OccurredAt: time.Now()}
	if poolID != nil {
		env.Actor = &outbox.Actor{UserID: uuid.New(), PoolID: poolID}
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "payout-events", AggregateType: enums.AggregatePoolPayout},
		Envelope:   env,
		Payload:    &payloads.PayoutCreatedEvent{},
	}
}

func TestProcessBatchRetriesFailureAndPublishesRest(t *testing.T) {
	first := payoutEvent(t, enums.EventPayoutCreated, 0)
	second := payoutEvent(t, enums.EventPayoutCreated, 0)
	h := newHarness(t, []models.OutboxEvent{first, second}, &fakeRegistry{resolved: resolvedPayout(nil)}, 5,
		fakePublishResult{err: errors.New("unavailable")},
		fakePublishResult{},
	)

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Empty(t, h.dlq.entries)
	assert.Equal(t, 1.0, h.deliveries(enums.EventPayoutCreated, outcomeRetry))
	assert.Equal(t, 1.0, h.deliveries(enums.EventPayoutCreated, outcomePublished))
}

func TestPublishKeysMessagesByPayout(t *testing.T) {
	event := payoutEvent(t, enums.EventPayoutVoteCast, 0)
	poolID := uuid.New()
	h := newHarness(t, []models.OutboxEvent{event}, &fakeRegistry{resolved: resolvedPayout(&poolID)}, 5, fakePublishResult{})

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.pub.sent, 1)

	msg := h.pub.sent[0]
	assert.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, []byte(event.Payload), msg.Data)
	assert.Equal(t, string(enums.EventPayoutVoteCast), msg.Attributes["event_type"])
	assert.Equal(t, event.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, poolID.String(), msg.Attributes["pool_id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", msg.Attributes["created_at"])
}

func TestProcessBatchDeadLettersUnresolvableEvent(t *testing.T) {
	event := payoutEvent(t, enums.EventPayoutCreated, 0)
	resolver := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	h := newHarness(t, []models.OutboxEvent{event}, resolver, 5)

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, h.pub.sent)
	require.Len(t, h.dlq.entries, 1)

	entry := h.dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, []byte(event.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{event.ID}, h.repo.terminal)
	assert.Equal(t, 1.0, h.deliveries(enums.EventPayoutCreated, outcomeDeadLettered))
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := payoutEvent(t, enums.EventPayoutStatusChanged, 1)
	h := newHarness(t, []models.OutboxEvent{event}, &fakeRegistry{resolved: resolvedPayout(nil)}, 2,
		fakePublishResult{err: errors.New("deadline exceeded")},
	)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.repo.failed)
	assert.Equal(t, []uuid.UUID{event.ID}, h.repo.terminal)
}

func TestProcessBatchDeadLettersWhenPublisherMissing(t *testing.T) {
	event := payoutEvent(t, enums.EventPayoutCreated, 0)
	h := newHarness(t, []models.OutboxEvent{event}, &fakeRegistry{resolved: resolvedPayout(nil)}, 5)
	h.svc.publisherFor = func(string) publisher { return nil }

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
}

func TestProcessBatchAbortsOnBookkeepingFailure(t *testing.T) {
	event := payoutEvent(t, enums.EventPayoutCreated, 0)
	h := newHarness(t, []models.OutboxEvent{event}, &fakeRegistry{resolved: resolvedPayout(nil)}, 5, fakePublishResult{})
	h.repo.markErr = errors.New("connection reset")

	_, err := h.svc.processBatch(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "mark published")
	assert.Zero(t, h.deliveries(enums.EventPayoutCreated, outcomePublished))
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	h := newHarness(t, nil, &fakeRegistry{resolved: resolvedPayout(nil)}, 5)
	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestNewServiceReportsEveryMissingDependency(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "config is required")
	assert.ErrorContains(t, err, "dlq repository is required")
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, &fakeRegistry{resolved: resolvedPayout(nil)}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.svc.Run(ctx), context.Canceled)
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

func payoutEvent(eventType enums.OutboxEventType, id uuid.UUID) Event {
	return Event{
		EventType:     eventType,
		AggregateType: enums.AggregatePoolPayout,
		AggregateID:   id,
		Data:          map[string]string{"payout_id": id.String()},
	}
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	id := uuid.New()
	actor := uuid.New()

	event := payoutEvent(enums.EventPayoutCreated, id)
	event.Actor = &Actor{UserID: actor}
	require.NoError(t, svc.Emit(context.Background(), conn, event))

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventPayoutCreated, rows[0].EventType)
	assert.Equal(t, id, rows[0].AggregateID)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.UserID)
	assert.JSONEq(t, `{"payout_id":"`+id.String()+`"}`, string(envelope.Data))
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, payoutEvent(enums.EventPayoutCreated, uuid.New())))
	require.Error(t, svc.Emit(context.Background(), conn, payoutEvent("order_created", uuid.New())))
}

func TestEmitOnceQueuesOnce(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	id := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.EmitOnce(ctx, conn, payoutEvent(enums.EventPayoutVotingFinalized, id)))
	require.NoError(t, svc.EmitOnce(ctx, conn, payoutEvent(enums.EventPayoutVotingFinalized, id)))
	require.NoError(t, svc.EmitOnce(ctx, conn, payoutEvent(enums.EventPayoutVotingFinalized, uuid.New())))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", id).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPublishBookkeeping(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	for _, id := range []uuid.UUID{first, second, third} {
		require.NoError(t, svc.Emit(ctx, conn, payoutEvent(enums.EventPayoutStatusChanged, id)))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("deadline exceeded")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "deadline exceeded", *pending[0].LastError)

	dlq := NewDLQRepository(conn)
	msg := "bad payload"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       rows[2].ID,
		EventType:     rows[2].EventType,
		AggregateType: rows[2].AggregateType,
		AggregateID:   rows[2].AggregateID,
		Payload:       rows[2].Payload,
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		AttemptCount:  3,
	}))
	require.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	lastErr := "boom"

	seed := func(published *time.Time, attempts int, created time.Time) uuid.UUID {
		row := models.OutboxEvent{
			EventType:     enums.EventPayoutVoteCast,
			AggregateType: enums.AggregatePoolPayout,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     created,
			PublishedAt:   published,
			AttemptCount:  attempts,
			LastError:     &lastErr,
		}
		require.NoError(t, conn.Create(&row).Error)
		return row.ID
	}
	seed(&old, 0, old)
	keepRecent := seed(&now, 0, now)
	seed(nil, 5, old)
	keepRetrying := seed(nil, 2, old)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, now.Add(-time.Hour), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Order("created_at").Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []uuid.UUID{keepRecent, keepRetrying}, remaining)
}

func TestEmitStampsOccurredAtFromClock(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	svc.now = func() time.Time { return at }

	require.NoError(t, svc.Emit(context.Background(), conn, payoutEvent(enums.EventPayoutCancelled, uuid.New())))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Nil(t, env.Actor)
}

func TestDecodeEnvelope(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e1","data":null}`))
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = DecodeEnvelope([]byte(`{"version":1,"eventId":"e1"}`))
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = DecodeEnvelope([]byte(`{"version":`))
	assert.ErrorContains(t, err, "decode envelope")

	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e1","data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", env.EventID)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))
}

package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/db/models"
	"github.com/angelmondragon/poolfund-backend/pkg/enums"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its data
// is decoded.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a stored outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    any
}

// EventRegistry knows every event type the publisher may send.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{EventType: eventType, AggregateType: aggregate, decode: decodeAs[T]}
}

// NewEventRegistry sends payout and voting settings events to the payout
// events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.PayoutEventsTopic == "" {
		return nil, fmt.Errorf("payout events topic is required")
	}
	descriptors := []EventDescriptor{
		describe[payloads.PayoutCreatedEvent](enums.EventPayoutCreated, enums.AggregatePoolPayout),
		describe[payloads.PayoutStatusChangedEvent](enums.EventPayoutStatusChanged, enums.AggregatePoolPayout),
		describe[payloads.PayoutVoteCastEvent](enums.EventPayoutVoteCast, enums.AggregatePoolPayout),
		describe[payloads.PayoutVotingFinalizedEvent](enums.EventPayoutVotingFinalized, enums.AggregatePoolPayout),
		describe[payloads.PayoutCancelledEvent](enums.EventPayoutCancelled, enums.AggregatePoolPayout),
		describe[payloads.VotingSettingsUpdatedEvent](enums.EventVotingSettingsUpdated, enums.AggregatePoolVotingSettings),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		desc.Topic = cfg.PayoutEventsTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// EventTypes lists the registered event types in sorted order.
func (r *EventRegistry) EventTypes() []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Resolve checks the row against its descriptor and decodes the typed payload.
// Every failure is non-retryable: the row will not get better on its own.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("%s row has no aggregate_id", event.EventType))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s data: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePoolPayout         OutboxAggregateType = "pool_payout"
	AggregatePoolVotingSettings OutboxAggregateType = "pool_voting_settings"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePoolPayout,
	AggregatePoolVotingSettings,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPayoutCreated         OutboxEventType = "payout_created"
	EventPayoutStatusChanged   OutboxEventType = "payout_status_changed"
	EventPayoutVoteCast        OutboxEventType = "payout_vote_cast"
	EventPayoutVotingFinalized OutboxEventType = "payout_voting_finalized"
	EventPayoutCancelled       OutboxEventType = "payout_cancelled"
	EventVotingSettingsUpdated OutboxEventType = "voting_settings_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPayoutCreated,
	EventPayoutStatusChanged,
	EventPayoutVoteCast,
	EventPayoutVotingFinalized,
	EventPayoutCancelled,
	EventVotingSettingsUpdated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new row. Readers accept any version
// they can decode.
const EnvelopeVersion = 1

// ErrEmptyData means the envelope decoded but carried no event payload.
var ErrEmptyData = errors.New("envelope has no data")

// Actor identifies who caused the event and, for pool-scoped events, the pool.
type Actor struct {
	UserID uuid.UUID  `json:"userId"`
	PoolID *uuid.UUID `json:"poolId,omitempty"`
	Role   string     `json:"role,omitempty"`
}

// Envelope wraps every payload stored in outbox_events.payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes whose data is
// missing or JSON null.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, ErrEmptyData
	}
	return env, nil
}

package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Message attributes set by the outbox publisher.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// ErrMalformed marks a message no retry can fix.
var ErrMalformed = errors.New("malformed outbox message")

type ActorRef struct {
	UserID uuid.UUID       `json:"userId"`
	Role   enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent as
// the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Delivered is an outbox event as a subscriber receives it.
type Delivered struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Actor         *ActorRef
	Data          json.RawMessage
}

// Decode rebuilds an event from message attributes and body. Aggregate
// attributes are optional; event type and id are not.
func Decode(attrs map[string]string, body []byte) (Delivered, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Delivered{}, fmt.Errorf("%w: body: %v", ErrMalformed, err)
	}
	eventType, err := enums.ParseOutboxEventType(attr(attrs, AttrEventType))
	if err != nil {
		return Delivered{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawID := strings.TrimSpace(env.EventID)
	if rawID == "" {
		rawID = attr(attrs, AttrEventID)
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return Delivered{}, fmt.Errorf("%w: event id %q", ErrMalformed, rawID)
	}

	out := Delivered{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: attr(attrs, AttrAggregateID),
		OccurredAt:  env.OccurredAt.UTC(),
		Actor:       env.Actor,
		Data:        env.Data,
	}
	if raw := attr(attrs, AttrAggregateType); raw != "" {
		if out.AggregateType, err = enums.ParseOutboxAggregateType(raw); err != nil {
			return Delivered{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if env.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr(attrs, AttrCreatedAt)); err == nil {
			out.OccurredAt = created.UTC()
		}
	}
	return out, nil
}

// Into unmarshals the event data into dst.
func (d Delivered) Into(dst any) error {
	if len(d.Data) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrMalformed, d.EventType)
	}
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, d.EventType, err)
	}
	return nil
}

func attr(attrs map[string]string, key string) string {
	return strings.TrimSpace(attrs[key])
}

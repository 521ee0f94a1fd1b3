// Package registry routes outbox rows to Pub/Sub topics and validates their
// payloads before they leave the database.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
)

const maxEnvelopeVersion = 1

// EventDescriptor links an event type to its aggregate, topic and payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func schema[T any]() func() any {
	return func() any { return new(T) }
}

// NewEventRegistry routes order lifecycle events to the orders topic and
// settlement events to the payments topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.PaymentsTopic == "":
		return nil, errors.New("payments topic is required")
	}

	orderEvents := map[enums.OutboxEventType]func() any{
		enums.EventOrderCreated:       schema[payloads.OrderCreatedEvent](),
		enums.EventOrderVerified:      schema[payloads.OrderVerifiedEvent](),
		enums.EventOrderStatusChanged: schema[payloads.OrderStatusChangedEvent](),
		enums.EventOrderCanceled:      schema[payloads.OrderCanceledEvent](),
		enums.EventOrderExpired:       schema[payloads.OrderExpiredEvent](),
	}
	paymentEvents := []enums.OutboxEventType{
		enums.EventPaymentSettled,
		enums.EventPaymentFailed,
		enums.EventPaymentRejected,
		enums.EventPaymentAwaitingConfirmation,
		enums.EventPaymentRefundRequested,
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(orderEvents)+len(paymentEvents))}
	for eventType, factory := range orderEvents {
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: factory,
		}
	}
	for _, eventType := range paymentEvents {
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregatePayment,
			Topic:          cfg.PaymentsTopic,
			PayloadFactory: schema[payloads.PaymentStatusEvent](),
		}
	}
	return reg, nil
}

// Topics lists the distinct topics events can be routed to, sorted.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	slices.Sort(out)
	return out
}

// Resolve finds the route for a row and decodes its payload. Every failure
// is non-retryable: the row itself is wrong, not the broker.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.route(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	env, payload, err := decodePayload(desc, event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

func (r *EventRegistry) route(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("%w: %s", ErrUnroutable, event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("%s belongs to %s aggregates, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}

func decodePayload(desc EventDescriptor, raw json.RawMessage) (outbox.PayloadEnvelope, any, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > maxEnvelopeVersion {
		return env, nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, env.Version)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, nil, fmt.Errorf("payload missing for %s", desc.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return env, nil, fmt.Errorf("decode %s payload: %w", desc.EventType, err)
	}
	return env, payload, nil
}

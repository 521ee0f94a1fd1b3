package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	fixed := time.Date(2026, 9, 14, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	orderID := uuid.New()
	buyer := uuid.New()
	ctx := logger.ContextWithRequestID(context.Background(), "req-00000001")

	err := svc.Emit(ctx, db, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{UserID: buyer, Role: enums.ActorRoleBuyer},
		Data:          map[string]any{"total": 1250},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)

	delivered, err := Decode(map[string]string{AttrEventType: string(enums.EventOrderCreated)}, rows[0].Payload)
	require.NoError(t, err)
	require.True(t, delivered.OccurredAt.Equal(fixed))
	require.Equal(t, buyer, delivered.Actor.UserID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.Equal(t, envelopeVersion, env.Version)
	require.Equal(t, "req-00000001", env.RequestID)
	require.JSONEq(t, `{"total":1250}`, string(env.Data))
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Emit(ctx, nil, DomainEvent{}), errTxRequired)
	require.Error(t, svc.Emit(ctx, db, DomainEvent{EventType: "listing_created", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, db, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}))
	require.Error(t, svc.Emit(ctx, db, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          make(chan int),
	}))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitIfNotExistsEmitsOnce(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	event := DomainEvent{
		EventType:     enums.EventOrderExpired,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"reason": "ttl"},
	}

	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

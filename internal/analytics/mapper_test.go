package analytics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
)

func delivered(t *testing.T, eventType enums.OutboxEventType, data any) outbox.Delivered {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.Delivered{
		EventID:    uuid.New(),
		EventType:  eventType,
		OccurredAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
		Data:       raw,
	}
}

func TestRowForUntrackedEvent(t *testing.T) {
	_, err := RowFor(outbox.Delivered{EventType: enums.OutboxEventType("listing_created")})
	if !errors.Is(err, ErrUntracked) {
		t.Fatalf("expected ErrUntracked, got %v", err)
	}
}

func TestRowForRejectsEmptyPayload(t *testing.T) {
	_, err := RowFor(outbox.Delivered{EventID: uuid.New(), EventType: enums.EventPaymentSettled})
	if !errors.Is(err, outbox.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestOrderCreatedRow(t *testing.T) {
	event := payloads.OrderCreatedEvent{
		OrderID:       uuid.New(),
		CheckoutID:    uuid.New(),
		BuyerID:       uuid.New(),
		FarmerID:      uuid.New(),
		TotalPaise:    10000,
		PaymentMethod: enums.PaymentMethodCash,
		ItemCount:     2,
	}
	in := delivered(t, enums.EventOrderCreated, event)

	row, err := RowFor(in)
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.EventID != in.EventID.String() || !row.OccurredAt.Equal(in.OccurredAt) {
		t.Fatalf("unexpected identity %s at %s", row.EventID, row.OccurredAt)
	}
	if row.OrderID == nil || *row.OrderID != event.OrderID.String() {
		t.Fatalf("unexpected order id %v", row.OrderID)
	}
	if row.GrossPaise == nil || *row.GrossPaise != 10000 {
		t.Fatalf("unexpected gross %v", row.GrossPaise)
	}
	if row.PaymentMethod == nil || *row.PaymentMethod != "cash" {
		t.Fatalf("unexpected payment method %v", row.PaymentMethod)
	}
	if row.ItemCount == nil || *row.ItemCount != 2 {
		t.Fatalf("unexpected item count %v", row.ItemCount)
	}
	if row.SettledPaise != nil {
		t.Fatal("order creation must not count as settled money")
	}
	if len(row.Payload) == 0 {
		t.Fatal("expected raw payload kept")
	}
}

func TestPaymentRowsOnlySettleOnSettlement(t *testing.T) {
	base := payloads.PaymentStatusEvent{
		PaymentID:   uuid.New(),
		OrderID:     uuid.New(),
		Channel:     enums.PaymentChannelUPIQR,
		AmountPaise: 4500,
	}
	settled := base
	settled.From = enums.PaymentStatusAwaitingConfirmation
	settled.Status = enums.PaymentStatusPaid
	rejected := base
	rejected.From = enums.PaymentStatusAwaitingConfirmation
	rejected.Status = enums.PaymentStatusRejected
	rejected.Reason = "amount mismatch"

	paid, err := RowFor(delivered(t, enums.EventPaymentSettled, settled))
	if err != nil {
		t.Fatalf("settled row: %v", err)
	}
	if paid.SettledPaise == nil || *paid.SettledPaise != 4500 {
		t.Fatalf("expected settled paise 4500, got %v", paid.SettledPaise)
	}
	if paid.Channel == nil || *paid.Channel != string(enums.PaymentChannelUPIQR) {
		t.Fatalf("unexpected channel %v", paid.Channel)
	}

	refused, err := RowFor(delivered(t, enums.EventPaymentRejected, rejected))
	if err != nil {
		t.Fatalf("rejected row: %v", err)
	}
	if refused.SettledPaise != nil {
		t.Fatal("rejected payment must not report settled paise")
	}
	if refused.Reason == nil || *refused.Reason != "amount mismatch" {
		t.Fatalf("unexpected reason %v", refused.Reason)
	}
}

func TestOrderExpiredRow(t *testing.T) {
	row, err := RowFor(delivered(t, enums.EventOrderExpired, payloads.OrderExpiredEvent{OrderID: uuid.New(), TotalPaise: 700}))
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.OrderStatus == nil || *row.OrderStatus != "cancelled" {
		t.Fatalf("unexpected order status %v", row.OrderStatus)
	}
	if row.Reason == nil || *row.Reason != "expired" {
		t.Fatalf("unexpected reason %v", row.Reason)
	}
	if row.BuyerID != nil {
		t.Fatalf("nil uuid should stay null, got %v", *row.BuyerID)
	}
}

func TestSaveUsesEventIDAsInsertID(t *testing.T) {
	order := "ord-1"
	row := SettlementEventRow{
		EventID:   "evt-1",
		EventType: string(enums.EventOrderVerified),
		OrderID:   &order,
		Payload:   json.RawMessage(`{"order_id":"ord-1"}`),
	}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if insertID != "evt-1" {
		t.Fatalf("expected insert id evt-1, got %s", insertID)
	}
	if values["order_id"] != "ord-1" {
		t.Fatalf("unexpected order_id %v", values["order_id"])
	}
	if values["payment_id"] != nil || values["gross_paise"] != nil {
		t.Fatalf("expected unset columns to be null, got %v / %v", values["payment_id"], values["gross_paise"])
	}
	if values["payload"] != `{"order_id":"ord-1"}` {
		t.Fatalf("unexpected payload %v", values["payload"])
	}
	if len(values) != len(settlementSchema) {
		t.Fatalf("saved %d columns, schema has %d", len(values), len(settlementSchema))
	}
}

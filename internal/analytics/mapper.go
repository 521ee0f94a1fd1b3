package analytics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
)

// ErrUntracked is returned for event types that produce no row.
var ErrUntracked = errors.New("event not tracked by analytics")

type fillFunc func(event outbox.Delivered, row *SettlementEventRow) error

var fillers = map[enums.OutboxEventType]fillFunc{
	enums.EventOrderCreated:                fillOrderCreated,
	enums.EventOrderVerified:               fillOrderVerified,
	enums.EventOrderStatusChanged:          fillOrderStatusChanged,
	enums.EventOrderCanceled:               fillOrderCanceled,
	enums.EventOrderExpired:                fillOrderExpired,
	enums.EventPaymentSettled:              fillPayment,
	enums.EventPaymentFailed:               fillPayment,
	enums.EventPaymentRejected:             fillPayment,
	enums.EventPaymentAwaitingConfirmation: fillPayment,
	enums.EventPaymentRefundRequested:      fillPayment,
}

// RowFor maps one delivered event onto a settlement_events row.
func RowFor(event outbox.Delivered) (SettlementEventRow, error) {
	fill, ok := fillers[event.EventType]
	if !ok {
		return SettlementEventRow{}, fmt.Errorf("%w: %s", ErrUntracked, event.EventType)
	}
	row := SettlementEventRow{
		EventID:    event.EventID.String(),
		EventType:  string(event.EventType),
		OccurredAt: event.OccurredAt,
		Payload:    event.Data,
	}
	if err := fill(event, &row); err != nil {
		return SettlementEventRow{}, err
	}
	return row, nil
}

func fillOrderCreated(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.OrderCreatedEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID = id(p.OrderID)
	row.CheckoutID = id(p.CheckoutID)
	row.BuyerID = id(p.BuyerID)
	row.FarmerID = id(p.FarmerID)
	row.PaymentMethod = text(string(p.PaymentMethod))
	row.OrderStatus = text(string(enums.OrderStatusPending))
	row.PaymentStatus = text(string(enums.PaymentStatusPending))
	row.GrossPaise = num(p.TotalPaise)
	row.ItemCount = num(int64(p.ItemCount))
	return nil
}

func fillOrderVerified(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.OrderVerifiedEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID, row.BuyerID, row.FarmerID = id(p.OrderID), id(p.BuyerID), id(p.FarmerID)
	row.OrderStatus = text(string(enums.OrderStatusProcessing))
	return nil
}

func fillOrderStatusChanged(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.OrderStatusChangedEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID, row.BuyerID, row.FarmerID = id(p.OrderID), id(p.BuyerID), id(p.FarmerID)
	row.OrderStatus = text(string(p.To))
	row.PaymentStatus = text(string(p.PaymentStatus))
	return nil
}

func fillOrderCanceled(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.OrderCanceledEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID, row.BuyerID, row.FarmerID = id(p.OrderID), id(p.BuyerID), id(p.FarmerID)
	row.OrderStatus = text(string(enums.OrderStatusCancelled))
	row.GrossPaise = num(p.TotalPaise)
	row.Reason = text(p.Reason)
	return nil
}

func fillOrderExpired(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.OrderExpiredEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID, row.BuyerID, row.FarmerID = id(p.OrderID), id(p.BuyerID), id(p.FarmerID)
	row.OrderStatus = text(string(enums.OrderStatusCancelled))
	row.GrossPaise = num(p.TotalPaise)
	row.Reason = text("expired")
	return nil
}

// fillPayment sets settled_paise only on the settlement itself, so summing
// the column gives money actually collected.
func fillPayment(event outbox.Delivered, row *SettlementEventRow) error {
	var p payloads.PaymentStatusEvent
	if err := event.Into(&p); err != nil {
		return err
	}
	row.OrderID, row.BuyerID, row.FarmerID = id(p.OrderID), id(p.BuyerID), id(p.FarmerID)
	row.PaymentID = id(p.PaymentID)
	row.Channel = text(string(p.Channel))
	row.PaymentStatus = text(string(p.Status))
	row.GrossPaise = num(p.AmountPaise)
	row.Reason = text(p.Reason)
	if event.EventType == enums.EventPaymentSettled && p.Status == enums.PaymentStatusPaid {
		row.SettledPaise = num(p.AmountPaise)
	}
	return nil
}

func text(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func id(v uuid.UUID) *string {
	if v == uuid.Nil {
		return nil
	}
	return text(v.String())
}

func num(v int64) *int64 {
	return &v
}

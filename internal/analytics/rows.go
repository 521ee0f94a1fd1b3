// Package analytics turns order and payment events into settlement_events
// rows in BigQuery.
package analytics

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"

	pkgbigquery "github.com/angelmondragon/harvestlink-backend/pkg/bigquery"
)

// SettlementEventRow is one row per order or payment event. Columns that do
// not apply to the event stay null.
type SettlementEventRow struct {
	EventID       string
	EventType     string
	OccurredAt    time.Time
	OrderID       *string
	CheckoutID    *string
	PaymentID     *string
	BuyerID       *string
	FarmerID      *string
	PaymentMethod *string
	Channel       *string
	OrderStatus   *string
	PaymentStatus *string
	GrossPaise    *int64
	SettledPaise  *int64
	ItemCount     *int64
	Reason        *string
	Payload       json.RawMessage
}

var _ bigquery.ValueSaver = (*SettlementEventRow)(nil)

// SettlementEventsTable returns the table definition used when the worker is
// allowed to create it.
func SettlementEventsTable(name string) pkgbigquery.TableSpec {
	return pkgbigquery.TableSpec{
		Name:           name,
		Schema:         settlementSchema,
		PartitionField: "occurred_at",
		Clustering:     []string{"event_type", "farmer_id"},
	}
}

var settlementSchema = bigquery.Schema{
	{Name: "event_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: bigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "order_id", Type: bigquery.StringFieldType},
	{Name: "checkout_id", Type: bigquery.StringFieldType},
	{Name: "payment_id", Type: bigquery.StringFieldType},
	{Name: "buyer_id", Type: bigquery.StringFieldType},
	{Name: "farmer_id", Type: bigquery.StringFieldType},
	{Name: "payment_method", Type: bigquery.StringFieldType},
	{Name: "channel", Type: bigquery.StringFieldType},
	{Name: "order_status", Type: bigquery.StringFieldType},
	{Name: "payment_status", Type: bigquery.StringFieldType},
	{Name: "gross_paise", Type: bigquery.IntegerFieldType},
	{Name: "settled_paise", Type: bigquery.IntegerFieldType},
	{Name: "item_count", Type: bigquery.IntegerFieldType},
	{Name: "reason", Type: bigquery.StringFieldType},
	{Name: "payload", Type: bigquery.JSONFieldType},
}

// Save uses the event id as insert id so a redelivered event is dropped by
// BigQuery's streaming dedupe.
func (r *SettlementEventRow) Save() (map[string]bigquery.Value, string, error) {
	var payload bigquery.Value
	if len(r.Payload) > 0 {
		payload = string(r.Payload)
	}
	return map[string]bigquery.Value{
		"event_id":       r.EventID,
		"event_type":     r.EventType,
		"occurred_at":    r.OccurredAt,
		"order_id":       nullable(r.OrderID),
		"checkout_id":    nullable(r.CheckoutID),
		"payment_id":     nullable(r.PaymentID),
		"buyer_id":       nullable(r.BuyerID),
		"farmer_id":      nullable(r.FarmerID),
		"payment_method": nullable(r.PaymentMethod),
		"channel":        nullable(r.Channel),
		"order_status":   nullable(r.OrderStatus),
		"payment_status": nullable(r.PaymentStatus),
		"gross_paise":    nullable(r.GrossPaise),
		"settled_paise":  nullable(r.SettledPaise),
		"item_count":     nullable(r.ItemCount),
		"reason":         nullable(r.Reason),
		"payload":        payload,
	}, r.EventID, nil
}

func nullable[T any](v *T) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

package gateway

import (
	"encoding/json"
	"fmt"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// WebhookEvent is the part of a gateway webhook body this service acts on.
type WebhookEvent struct {
	Event            string
	GatewayOrderID   string
	GatewayPaymentID string
	AmountPaise      int64
	ErrorDescription string
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhookEvent extracts the event name and payment references.
func ParseWebhookEvent(raw []byte) (WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if body.Event == "" {
		return WebhookEvent{}, fmt.Errorf("decode webhook: event missing")
	}
	evt := WebhookEvent{Event: body.Event}
	if p := body.Payload.Payment; p != nil {
		evt.GatewayPaymentID = p.Entity.ID
		evt.GatewayOrderID = p.Entity.OrderID
		evt.AmountPaise = p.Entity.Amount
		evt.ErrorDescription = p.Entity.ErrorDescription
	}
	if o := body.Payload.Order; o != nil {
		if evt.GatewayOrderID == "" {
			evt.GatewayOrderID = o.Entity.ID
		}
		if evt.AmountPaise == 0 {
			evt.AmountPaise = o.Entity.Amount
		}
	}
	return evt, nil
}

// Settles reports whether the event marks the payment as captured.
func (e WebhookEvent) Settles() bool {
	return e.Event == EventPaymentCaptured || e.Event == EventOrderPaid
}

func (e WebhookEvent) Fails() bool {
	return e.Event == EventPaymentFailed
}

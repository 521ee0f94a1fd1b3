package notifications

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/messaging"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/harvestlink-backend/pkg/pubsub"
)

// RelayConsumer names the relay's idempotency claims.
const RelayConsumer = "order-chat-relay"

type noticeWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// processedGuard claims are keyed "<event id>:<recipient id>".
type processedGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Consumer relays order events into the buyer/farmer chat as system
// messages. When the chat service refuses a message for good, the text is
// kept as an in-app notice so the recipient still sees it.
type Consumer struct {
	repo         noticeWriter
	sender       messaging.Sender
	subscription *gcppubsub.Subscriber
	guard        processedGuard
	logg         *logger.Logger
}

func NewConsumer(repo noticeWriter, sender messaging.Sender, subscription *gcppubsub.Subscriber, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("notifications repository required")
	case sender == nil:
		return nil, fmt.Errorf("messaging sender required")
	case subscription == nil:
		return nil, fmt.Errorf("orders subscription required")
	case guard == nil:
		return nil, fmt.Errorf("idempotency guard required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		sender:       sender,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run consumes the orders subscription until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return pubsub.Receive(ctx, c.subscription, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes[outbox.AttrEventType])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	switch eventType {
	case enums.EventOrderCanceled, enums.EventOrderExpired, enums.EventOrderStatusChanged:
	default:
		return false
	}

	event, err := outbox.Decode(msg.Attributes, msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable order event", err)
		return false
	}
	messages, err := relayMessages(event)
	if err != nil {
		c.logg.Error(logCtx, "dropping order event with bad payload", err)
		return false
	}

	eventID := event.EventID.String()
	logCtx = c.logg.WithField(logCtx, "event_id", eventID)

	redeliver := false
	relayed := 0
	for _, m := range messages {
		claim := eventID + ":" + m.RecipientID.String()
		seen, err := c.guard.CheckAndMark(ctx, claim)
		if err != nil {
			c.logg.Error(logCtx, "idempotency check failed", err)
			redeliver = true
			continue
		}
		if seen {
			continue
		}
		if err := c.deliver(logCtx, eventType, m); err != nil {
			c.logg.Error(c.logg.WithField(logCtx, "recipient_id", m.RecipientID.String()), "order relay failed", err)
			_ = c.guard.Delete(ctx, claim)
			redeliver = true
			continue
		}
		relayed++
	}
	if relayed == 0 && !redeliver {
		c.logg.Info(logCtx, "event already relayed")
	}
	return redeliver
}

// deliver returns an error only when the event should be retried.
func (c *Consumer) deliver(ctx context.Context, eventType enums.OutboxEventType, msg messaging.SystemMessage) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"order_id":     msg.OrderID.String(),
		"recipient_id": msg.RecipientID.String(),
		"kind":         msg.Kind,
	})
	err := c.sender.SendSystemMessage(ctx, msg)
	if err == nil {
		c.logg.Info(logCtx, "system message relayed")
		return nil
	}
	if typed := pkgerrors.As(err); typed == nil || pkgerrors.MetadataFor(typed.Code()).Retryable {
		return err
	}

	c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "chat service refused message; keeping in-app notice")
	orderID := msg.OrderID
	notice := &models.Notification{
		RecipientID: msg.RecipientID,
		Type:        enums.NotificationTypeOrderAlert,
		Event:       noticeEvent(eventType),
		Title:       noticeTitle(eventType),
		Message:     msg.Body,
		OrderID:     &orderID,
	}
	if err := c.repo.Create(ctx, notice); err != nil {
		return fmt.Errorf("store fallback notice: %w", err)
	}
	return nil
}

func relayMessages(event outbox.Delivered) ([]messaging.SystemMessage, error) {
	switch event.EventType {
	case enums.EventOrderCanceled:
		var p payloads.OrderCanceledEvent
		if err := event.Into(&p); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("Order %s was cancelled by the %s.", shortOrder(p.OrderID), p.CancelledRole)
		if p.Reason != "" {
			body += " Reason: " + p.Reason
		}
		return []messaging.SystemMessage{{
			OrderID:     p.OrderID,
			SenderID:    p.CancelledBy,
			RecipientID: p.CounterpartID,
			Kind:        string(enums.NotifyOrderCancelled),
			Body:        body,
		}}, nil
	case enums.EventOrderExpired:
		var p payloads.OrderExpiredEvent
		if err := event.Into(&p); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("Order %s expired because the delivery code was never confirmed.", shortOrder(p.OrderID))
		out := make([]messaging.SystemMessage, 0, 2)
		for _, recipient := range []uuid.UUID{p.BuyerID, p.FarmerID} {
			out = append(out, messaging.SystemMessage{
				OrderID:     p.OrderID,
				RecipientID: recipient,
				Kind:        string(enums.EventOrderExpired),
				Body:        body,
			})
		}
		return out, nil
	default:
		var p payloads.OrderStatusChangedEvent
		if err := event.Into(&p); err != nil {
			return nil, err
		}
		return []messaging.SystemMessage{{
			OrderID:     p.OrderID,
			SenderID:    p.FarmerID,
			RecipientID: p.BuyerID,
			Kind:        string(enums.NotifyOrderStatusChanged) + ":" + string(p.To),
			Body:        fmt.Sprintf("Order %s is now %s.", shortOrder(p.OrderID), p.To),
		}}, nil
	}
}

func noticeEvent(eventType enums.OutboxEventType) enums.NotificationEvent {
	if eventType == enums.EventOrderStatusChanged {
		return enums.NotifyOrderStatusChanged
	}
	return enums.NotifyOrderCancelled
}

func noticeTitle(eventType enums.OutboxEventType) string {
	switch eventType {
	case enums.EventOrderExpired:
		return "Order expired"
	case enums.EventOrderStatusChanged:
		return "Order update"
	default:
		return "Order cancelled"
	}
}

func shortOrder(id uuid.UUID) string {
	return id.String()[:8]
}

package analytics

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/pubsub"
)

// ConsumerName scopes the analytics idempotency claims.
const ConsumerName = "analytics"

type rowWriter interface {
	Write(ctx context.Context, rows ...SettlementEventRow) error
}

type processedGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Consumer reads the analytics subscription and writes one row per tracked
// event.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	writer       rowWriter
	guard        processedGuard
	logg         *logger.Logger
}

func NewConsumer(subscription *gcppubsub.Subscriber, writer rowWriter, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription required")
	case writer == nil:
		return nil, errors.New("settlement writer required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{subscription: subscription, writer: writer, guard: guard, logg: logg}, nil
}

func (c *Consumer) Run(ctx context.Context) error {
	return pubsub.Receive(ctx, c.subscription, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg pubsub.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"attempt":    msg.Attempt,
	})

	event, err := outbox.Decode(msg.Attributes, msg.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable analytics message")
		return false
	}
	eventID := event.EventID.String()
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":     eventID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})

	row, err := RowFor(event)
	switch {
	case errors.Is(err, ErrUntracked):
		return false
	case err != nil:
		c.logg.Error(logCtx, "dropping analytics event", err)
		return false
	}

	seen, err := c.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if seen {
		c.logg.Info(logCtx, "event already recorded")
		return false
	}

	if err := c.writer.Write(ctx, row); err != nil {
		if relErr := c.guard.Delete(ctx, eventID); relErr != nil {
			err = fmt.Errorf("%w (release claim: %v)", err, relErr)
		}
		c.logg.Error(logCtx, "settlement row write failed", err)
		return true
	}
	c.logg.Info(logCtx, "settlement row written")
	return false
}

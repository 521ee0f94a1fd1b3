package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/mailer"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
)

const (
	channelEmail = "email"
	channelInApp = "in_app"

	defaultDeliveryTimeout = 3 * time.Second
)

// Dispatcher is the production Notifier. Each notice is delivered on its own
// goroutine under a timeout, detached from the caller's cancellation.
type Dispatcher struct {
	repo     Repository
	mailer   mailer.Mailer
	metrics  *metrics.NotificationMetrics
	logg     *logger.Logger
	timeout  time.Duration
	disabled bool

	wg sync.WaitGroup
}

// NewDispatcher wires the email and in-app channels.
func NewDispatcher(cfg config.NotificationsConfig, repo Repository, m mailer.Mailer, nm *metrics.NotificationMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if m == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Dispatcher{
		repo:     repo,
		mailer:   m,
		metrics:  nm,
		logg:     logg,
		timeout:  timeout,
		disabled: cfg.Disabled,
	}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, target Target, event enums.NotificationEvent, payload Payload) {
	if d.disabled || target.ProfileID == uuid.Nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go d.deliver(detached, target, event, payload)
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, target Target, event enums.NotificationEvent, payload Payload) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event":        string(event),
		"recipient_id": target.ProfileID.String(),
		"order_id":     payload.OrderID.String(),
	})
	defer func() {
		if r := recover(); r != nil {
			d.logg.Error(logCtx, "notification delivery panicked", fmt.Errorf("panic: %v", r))
			d.metrics.IncFailed("panic", string(event))
		}
	}()

	msg := render(event, target, payload)

	if target.Email != "" {
		err := d.mailer.Send(ctx, mailer.Message{
			To:      target.Email,
			ToName:  target.Name,
			Subject: msg.Title,
			Text:    msg.Body,
		})
		if err != nil {
			d.logg.Error(logCtx, "notification email failed", err)
			d.metrics.IncFailed(channelEmail, string(event))
		} else {
			d.metrics.IncDelivered(channelEmail, string(event))
		}
	}

	// order codes stay out of the database
	if event == enums.NotifyOrderOTP {
		return
	}
	row := &models.Notification{
		ID:          uuid.New(),
		RecipientID: target.ProfileID,
		Type:        event.NotificationType(),
		Event:       event,
		Title:       msg.Title,
		Message:     msg.Body,
		CreatedAt:   time.Now().UTC(),
	}
	if payload.OrderID != uuid.Nil {
		orderID := payload.OrderID
		row.OrderID = &orderID
	}
	if err := d.repo.Create(ctx, row); err != nil {
		d.logg.Error(logCtx, "in-app notification insert failed", err)
		d.metrics.IncFailed(channelInApp, string(event))
		return
	}
	d.metrics.IncDelivered(channelInApp, string(event))
}

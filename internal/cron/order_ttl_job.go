package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const (
	defaultPendingTTL   = 48 * time.Hour
	defaultOrderTTLScan = 200
)

type OrderTTLJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderFinder
	Expirer    orderExpirer
	PendingTTL time.Duration
	BatchSize  int
}

type pendingOrderFinder interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// NewOrderTTLJob cancels orders whose delivery code was never confirmed
// and hands their stock back.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrderTTLScan
	}
	return &orderTTLJob{
		logg:    params.Logger,
		orders:  params.Orders,
		expirer: params.Expirer,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderTTLJob struct {
	logg    *logger.Logger
	orders  pendingOrderFinder
	expirer orderExpirer
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("find pending orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		ok, err := j.expirer.ExpirePending(ctx, order.ID)
		if err != nil {
			j.logg.Error(j.logg.WithField(ctx, "order_id", order.ID.String()), "order expiry failed", err)
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return expired, errs
}

package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/harvestlink-backend/internal/payments"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const defaultReconcileBatch = 500

type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler paymentReconciler
	BatchSize  int
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, limit int) (payments.ReconcileResult, error)
}

// NewPaymentReconcileJob repairs orders whose payment_status drifted from
// the payment row and credits paid payments missing a ledger entry.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		batch:      batch,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	reconciler paymentReconciler
	batch      int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) (int, error) {
	result, err := j.reconciler.Reconcile(ctx, j.batch)
	changed := result.StatusRepaired + result.Credited
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"status_repaired": result.StatusRepaired,
		"credited":        result.Credited,
	})
	if err != nil {
		return changed, fmt.Errorf("payment reconcile: %w", err)
	}
	j.logg.Info(logCtx, "payment reconcile complete")
	return changed, nil
}

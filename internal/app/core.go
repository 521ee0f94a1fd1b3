package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/harvestlink-backend/internal/inventory"
	"github.com/angelmondragon/harvestlink-backend/internal/ledger"
	"github.com/angelmondragon/harvestlink-backend/internal/notifications"
	"github.com/angelmondragon/harvestlink-backend/internal/orders"
	"github.com/angelmondragon/harvestlink-backend/internal/otp"
	"github.com/angelmondragon/harvestlink-backend/internal/payments"
	"github.com/angelmondragon/harvestlink-backend/internal/profiles"
	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/gateway"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/mailer"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/redis"
	"github.com/angelmondragon/harvestlink-backend/pkg/storage/gcs"
)

// Core holds the order and payment services shared by the api and the cron worker.
type Core struct {
	Profiles      profiles.Repository
	Ledger        ledger.Service
	Notifications notifications.Repository
	Dispatcher    *notifications.Dispatcher
	OrdersRepo    orders.Repository
	Orders        orders.Service
	PaymentsRepo  payments.Repository
	Payments      payments.Service
	Gateway       *gateway.Client
	Outbox        *outbox.Repository
	Metrics       *metrics.PaymentMetrics
}

// CoreParams are the clients each binary already opened.
type CoreParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Storage    gcs.Uploader
	Registerer prometheus.Registerer
}

// BuildCore wires repositories and services over the shared clients.
func BuildCore(ctx context.Context, params CoreParams) (*Core, error) {
	cfg, logg := params.Config, params.Logger
	if cfg == nil || logg == nil || params.DB == nil || params.Redis == nil {
		return nil, fmt.Errorf("config, logger, db and redis required")
	}
	reg := params.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gormDB := params.DB.DB()

	profileRepo := profiles.NewRepository(gormDB)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB), profileRepo)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	noticeRepo := notifications.NewRepository(gormDB)
	dispatcher, err := notifications.NewDispatcher(
		cfg.Notifications,
		noticeRepo,
		mailer.New(cfg.Sendgrid, logg),
		metrics.NewNotificationMetrics(reg),
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	core := &Core{
		Profiles:      profileRepo,
		Ledger:        ledgerSvc,
		Notifications: noticeRepo,
		Dispatcher:    dispatcher,
		OrdersRepo:    orders.NewRepository(gormDB),
		PaymentsRepo:  payments.NewRepository(gormDB),
		Outbox:        outboxRepo,
		Metrics:       metrics.NewPaymentMetrics(reg),
	}

	deps := payments.Deps{
		Repo:     core.PaymentsRepo,
		Tx:       params.DB,
		Outbox:   emitter,
		Ledger:   ledgerSvc,
		Profiles: profileRepo,
		Storage:  params.Storage,
		Notifier: dispatcher,
		Metrics:  core.Metrics,
		Logger:   logg,
		Config:   cfg.Gateway,
	}
	gw, err := gateway.NewClient(cfg.Gateway)
	switch {
	case err == nil:
		core.Gateway = gw
		deps.Gateway = gw
	case errors.Is(err, gateway.ErrNotConfigured):
		logg.Warn(ctx, "payment gateway not configured; gateway checkout disabled")
	default:
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	core.Payments, err = payments.NewService(deps)
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	core.Orders, err = orders.NewService(orders.Deps{
		Repo:      core.OrdersRepo,
		Tx:        params.DB,
		Outbox:    emitter,
		Inventory: inventory.NewLedger(),
		OTP:       otp.NewVerifier(cfg.OTP, params.Redis),
		Profiles:  profileRepo,
		Payments:  core.Payments,
		Notifier:  dispatcher,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	return core, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/harvestlink-backend/internal/analytics"
	"github.com/angelmondragon/harvestlink-backend/pkg/bigquery"
	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/instance"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/harvestlink-backend/pkg/pubsub"
	"github.com/angelmondragon/harvestlink-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(ctx, logg, "config", err)
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	must(ctx, logg, "redis", err)
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	must(ctx, logg, "pubsub", err)
	defer closeQuietly(ctx, logg, "pubsub", pubsubClient.Close)

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	must(ctx, logg, "bigquery", err)
	defer closeQuietly(ctx, logg, "bigquery", bq.Close)

	table := analytics.SettlementEventsTable(cfg.BigQuery.SettlementEventsTable)
	must(ctx, logg, "settlement table", bq.EnsureTable(ctx, table, cfg.BigQuery.AutoCreateTables))

	guard, err := idempotency.New(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	must(ctx, logg, "idempotency guard", err)

	writer, err := analytics.NewWriter(bq, analytics.WriterConfig{
		Table:    table.Name,
		Attempts: cfg.BigQuery.InsertAttempts,
		Backoff:  cfg.BigQuery.InsertBackoff,
	})
	must(ctx, logg, "settlement writer", err)

	consumer, err := analytics.NewConsumer(pubsubClient.AnalyticsSubscription(), writer, guard.Consumer(analytics.ConsumerName), logg)
	must(ctx, logg, "analytics consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(serviceName),
	})
	logg.Info(runCtx, "analytics worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
}

func must(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "failed to close "+name, err)
	}
}

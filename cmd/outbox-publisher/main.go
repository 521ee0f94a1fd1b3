package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/instance"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
	"github.com/angelmondragon/harvestlink-backend/pkg/migrate"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/registry"
	"github.com/angelmondragon/harvestlink-backend/pkg/pubsub"
)

func main() {
	replay := flag.String("replay", "", "requeue the dead-lettered outbox event with this id and exit")
	listDLQ := flag.Bool("list-dlq", false, "print dead letters awaiting replay and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	repo := outbox.NewRepository(dbClient.DB())
	dlqRepo := outbox.NewDLQRepository(dbClient.DB())

	if *listDLQ || *replay != "" {
		if err := runDLQCommand(context.Background(), logg, dbClient, repo, dlqRepo, *replay); err != nil {
			logg.Error(context.Background(), "dead letter command failed", err)
			os.Exit(1)
		}
		return
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    repo,
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"instance":    instance.ID("outbox-publisher"),
		"topics":      eventRegistry.Topics(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// runDLQCommand lists pending dead letters, or replays one when eventID is set.
func runDLQCommand(ctx context.Context, logg *logger.Logger, dbClient *db.Client, repo *outbox.Repository, dlq *outbox.DLQRepository, eventID string) error {
	if eventID == "" {
		rows, err := dlq.ListPending(ctx, 0)
		if err != nil {
			return err
		}
		for _, row := range rows {
			fields := map[string]any{
				"event_id":      row.EventID.String(),
				"event_type":    row.EventType,
				"aggregate_id":  row.AggregateID.String(),
				"error_reason":  row.ErrorReason,
				"attempt_count": row.AttemptCount,
				"failed_at":     row.FailedAt.Format(time.RFC3339),
			}
			if row.ErrorMessage != nil {
				fields["error"] = *row.ErrorMessage
			}
			logg.Info(logg.WithFields(ctx, fields), "dead letter pending")
		}
		logg.Info(logg.WithField(ctx, "count", len(rows)), "dead letter listing complete")
		return nil
	}

	id, err := uuid.Parse(eventID)
	if err != nil {
		return err
	}
	err = dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.ReplayTx(ctx, tx, repo, id, time.Now().UTC())
	})
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "event_id", id.String()), "dead letter requeued")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	notificationRetentionDays = 90
)

// purgeJob deletes rows older than a day-based cutoff inside one transaction.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	retention int
	now       func() time.Time
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, retention, fallback int, purge func(context.Context, *gorm.DB, time.Time) (int64, error)) (*purgeJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &purgeJob{
		name:      name,
		logg:      logg,
		db:        db,
		purge:     purge,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.retention)
}

func (j *purgeJob) Run(ctx context.Context) (int, error) {
	cutoff := j.cutoff()
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "retention purge complete")
	return int(deleted), nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	}
	Days int
}

// NewOutboxRetentionJob drops published outbox rows. Unpublished and
// dead-lettered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	repo := params.Repository
	return newPurgeJob("outbox-retention", params.Logger, params.DB, params.Days, outboxRetentionDays,
		func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(tx, cutoff)
		})
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	}
	Days int
}

// NewNotificationCleanupJob drops in-app notices that were read before the
// cutoff. Unread notices stay until the recipient opens them.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newPurgeJob("notification-cleanup", params.Logger, params.DB, params.Days, notificationRetentionDays, params.Repository.DeleteReadBefore)
}

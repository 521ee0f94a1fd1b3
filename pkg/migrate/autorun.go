package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to the newest embedded migration when
// HARVESTLINK_AUTO_MIGRATE is on. Other environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	current, latest, err := versions(sqlDB)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "db_version": current, "latest_version": latest})
	if current >= latest {
		logg.Debug(ctx, "schema already current")
		return nil
	}

	logg.Info(ctx, "applying schema migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "schema migrations applied")
	return nil
}

// versions reports the applied schema version and the newest embedded one.
func versions(sqlDB *sql.DB) (int64, int64, error) {
	if err := prepare(); err != nil {
		return 0, 0, err
	}
	current, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return 0, 0, fmt.Errorf("get db version: %w", err)
	}
	latest, err := latestEmbeddedVersion()
	if err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func latestEmbeddedVersion() (int64, error) {
	files, err := EmbeddedFiles()
	if err != nil {
		return 0, fmt.Errorf("listing migrations: %w", err)
	}
	var latest int64
	for _, name := range files {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", name, err)
		}
		latest = max(latest, v)
	}
	return latest, nil
}

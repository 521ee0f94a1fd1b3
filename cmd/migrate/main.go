package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/instance"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/migrate"
)

type dbCommand func(ctx context.Context, sqlDB *sql.DB) error

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate|list")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory used by create and validate")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"instance": instance.ID("migrate"),
	})

	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail(ctx, logg, "create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(ctx, logg, "validate migrations", err)
		}
		fmt.Println("migration validation passed")
		return
	case "list":
		files, err := migrate.EmbeddedFiles()
		if err != nil {
			fail(ctx, logg, "list migrations", err)
		}
		fmt.Println(strings.Join(files, "\n"))
		return
	}

	commands := map[string]dbCommand{
		"up":     func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, "up") },
		"down":   func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, "down") },
		"redo":   func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, "redo") },
		"status": func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, "status") },
		"version": func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.MigrateToVersion(ctx, sqlDB, *version)
		},
	}
	run, ok := commands[*cmd]
	if !ok {
		fail(ctx, logg, "parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "extract sql.DB", err)
	}

	logg.Info(ctx, "running migration command")
	if err := run(ctx, sqlDB); err != nil {
		dbClient.Close()
		fail(ctx, logg, "migration command failed", err)
	}
	logg.Info(ctx, "migration command complete")
}

func fail(ctx context.Context, logg *logger.Logger, step string, err error) {
	logg.Error(ctx, step, err)
	os.Exit(1)
}

// Package main applies the journal schema in migrations/ to the configured
// database, or with -tail prints the newest journal entries.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/config"
	"github.com/cory-johannsen/roomlink/internal/observability"
	"github.com/cory-johannsen/roomlink/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	source := flag.String("source", "file://migrations", "migration source URL")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	tail := flag.Int("tail", 0, "print the N newest journal entries instead of migrating")
	actor := flag.String("actor", "", "with -tail, only entries caused by this user id")
	flag.Parse()

	dbCfg, logCfg, err := config.LoadDatabase(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(logCfg, "migrate")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Flush(logger) }()

	if *tail > 0 {
		if err := runTail(dbCfg, *actor, *tail, logger); err != nil {
			logger.Fatal("reading journal", zap.Error(err))
		}
		return
	}

	if err := runMigrate(dbCfg, *source, *direction, *steps, logger); err != nil {
		logger.Fatal("migration failed",
			zap.String("source", *source),
			zap.String("direction", *direction),
			zap.Error(err),
		)
	}
	logger.Info("migrate finished", zap.Duration("elapsed", time.Since(start)))
}

func runMigrate(cfg config.DatabaseConfig, source, direction string, steps int, logger *zap.Logger) error {
	m, err := migrate.New(source, cfg.DSN())
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return errors.New("direction must be 'up' or 'down'")
	}

	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		return err
	}

	version, dirty, _ := m.Version()
	if noChange {
		logger.Info("schema already current", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}
	logger.Info("schema migrated",
		zap.String("direction", direction),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func runTail(cfg config.DatabaseConfig, actor string, n int, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return writeTail(ctx, postgres.NewEventRepository(pool.DB()), os.Stdout, actor, n)
}

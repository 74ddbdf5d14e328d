package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keyforge/keyforge/internal/config"
	"github.com/keyforge/keyforge/internal/db"
	"github.com/keyforge/keyforge/internal/jobs"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/natsq"
	"github.com/keyforge/keyforge/internal/worker"
)

func main() {
	logger.Init("worker-service")
	logger.Logger.Info().Msg("Starting key generation worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Driver != "postgres" {
		// The memory driver keeps store and queue inside the API
		// process; a standalone worker would see neither.
		logger.Logger.Fatal().Str("driver", cfg.Driver).Msg("Standalone worker requires the postgres driver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	store := db.NewStore(database)
	store.StartSweeper(ctx, cfg.SweepInterval)

	queue, err := natsq.New(cfg.NATSURL, cfg.VisibilityTimeout, cfg.MaxDeliveries)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer queue.Close()

	manager := jobs.NewManager(store, queue, cfg.ResultTTL)

	pool := worker.NewPool(manager, queue, cfg.WorkerCount)
	pool.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	pool.Stop()
	logger.Logger.Info().Msg("Worker stopped")
}

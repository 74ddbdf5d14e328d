package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyforge/keyforge/internal/api"
	"github.com/keyforge/keyforge/internal/config"
	"github.com/keyforge/keyforge/internal/db"
	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/jobs"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/memqueue"
	"github.com/keyforge/keyforge/internal/memstore"
	"github.com/keyforge/keyforge/internal/natsq"
	"github.com/keyforge/keyforge/internal/websocket"
	"github.com/keyforge/keyforge/internal/worker"
)

func main() {
	logger.Init("api-service")

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		resultStore interfaces.ResultStore
		noteStore   interfaces.NoteStore
		queue       interfaces.JobQueue
	)

	switch cfg.Driver {
	case "postgres":
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
		resultStore, noteStore = store, store

		queue, err = natsq.New(cfg.NATSURL, cfg.VisibilityTimeout, cfg.MaxDeliveries)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}

	case "memory":
		store := memstore.New()
		resultStore, noteStore = store, store
		queue = memqueue.New(cfg.VisibilityTimeout, cfg.MaxDeliveries)

		go func() {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					store.Sweep()
				}
			}
		}()

	default:
		logger.Logger.Fatal().Str("driver", cfg.Driver).Msg("Unknown storage driver")
	}
	defer queue.Close()

	manager := jobs.NewManager(resultStore, queue, cfg.ResultTTL)

	hub := websocket.NewHub()
	go hub.Run()

	// The memory driver keeps all state in this process, so the worker
	// pool has to live here too.
	var pool *worker.Pool
	if cfg.Driver == "memory" {
		pool = worker.NewPool(manager, queue, cfg.WorkerCount)
		pool.Start()
	}

	server := api.NewServer(manager, resultStore, noteStore, hub, cfg.HTTPPort)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shut down API server cleanly")
	}
	if pool != nil {
		pool.Stop()
	}
	logger.Logger.Info().Msg("Server stopped")
}

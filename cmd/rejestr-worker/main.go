package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rejestr/internal/amqp"
	"rejestr/internal/archive"
	"rejestr/internal/archive/google"
	"rejestr/internal/archive/memory"
	"rejestr/internal/config"
	"rejestr/internal/log"
	"rejestr/internal/storage"
	"rejestr/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Setup(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "rejestr-worker",
		JSON:      cfg.LogJSON,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var writer archive.SettlementWriter
	switch cfg.ArchiveBackend {
	case "google":
		client, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets archive", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Initialized Google Sheets archive backend")
	default:
		writer = memory.New()
		logger.Info("Initialized memory archive backend")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archiveWorker := worker.NewArchiveWorker(repo, writer, cfg.ArchiveBatchSize)

	// Drain anything that settled while the worker was down.
	if err := archiveWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup settlement check failed", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeTransactionSettled(ctx, func(msg *amqp.TransactionSettledMessage) error {
			return archiveWorker.HandleSettledMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		stop()
	}()

	// Periodic catch-up scan in case AMQP messages were lost.
	ticker := time.NewTicker(cfg.ArchiveInterval)
	defer ticker.Stop()

	logger.Info("Worker started",
		"queue", cfg.AMQPQueue,
		"backend", cfg.ArchiveBackend,
		"interval", cfg.ArchiveInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopped gracefully")
			return
		case <-ticker.C:
			if err := archiveWorker.ProcessPendingSettlements(ctx); err != nil {
				logger.Error("Periodic settlement scan failed", "error", err)
			}
		}
	}
}

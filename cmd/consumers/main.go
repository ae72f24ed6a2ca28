package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tulpar/cmd/consumers/jobs"
	"tulpar/internal/config"
	"tulpar/internal/consumers"
	"tulpar/internal/database"
	"tulpar/internal/logger"
	"tulpar/internal/repository"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	// Отдельное соединение для фоновой очистки intents
	jobDB, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database for jobs", "error", err)
	}
	defer jobDB.Close()

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	expirationJob := jobs.NewIntentExpirationJob(
		repository.NewPaymentIntentRepository(jobDB), cfg.IntentTTL, cfg.SweepInterval)
	expirationJob.Start(jobCtx)

	slog.Info("Consumers are running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down consumers...")
	expirationJob.Stop()
	cancelJobs()
	if err := consumerService.Shutdown(context.Background()); err != nil {
		slog.Error("Consumer shutdown failed", "error", err)
	}
	slog.Info("Consumers exited")
}

package main

import (
	"context"
	"log/slog"
	"time"

	"tulpar/internal/config"
	"tulpar/internal/database"
	"tulpar/internal/logger"
	"tulpar/internal/repository"
)

// reconcile исправляет расхождения между registered_count и фактическим
// числом регистраций. Запускается вручную или по расписанию.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	events := repository.NewEventRepository(db)
	repaired, err := events.ReconcileRegisteredCounts(ctx)
	if err != nil {
		logger.Fatal("Reconciliation failed", "error", err)
	}

	if repaired == 0 {
		slog.Info("Seat counters are consistent")
	} else {
		slog.Warn("Repaired drifted seat counters", "events", repaired)
	}
}

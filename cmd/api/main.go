package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tulpar/internal/api"
	"tulpar/internal/cache"
	"tulpar/internal/config"
	"tulpar/internal/database"
	"tulpar/internal/external"
	"tulpar/internal/handlers"
	"tulpar/internal/logger"
	"tulpar/internal/messaging"
	"tulpar/internal/middleware"
	"tulpar/internal/repository"
	"tulpar/internal/search"
	"tulpar/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// NATS, Redis и Elasticsearch не критичны для старта: без них сервис
	// работает в деградированном режиме
	var publisher service.Publisher
	natsClient, err := messaging.NewClient(cfg.NATS)
	if err != nil {
		slog.Warn("NATS unavailable, domain events will not be published", "error", err)
	} else {
		publisher = natsClient
		defer natsClient.Close()
	}

	redisClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	esClient, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch unavailable, falling back to database search", "error", err)
		esClient = nil
	}

	repos := repository.NewRepositories(db)
	gateway := external.NewPaymentClient(cfg.Gateway)

	var searcher service.EventSearcher
	if esClient != nil {
		searcher = esClient
	}
	var pageCache service.PageCache
	if redisClient != nil {
		pageCache = redisClient
	}

	services := service.NewServices(repos, publisher, gateway, searcher, pageCache, service.Secrets{
		CheckoutSecret: cfg.Gateway.KeySecret,
		WebhookSecret:  cfg.Gateway.WebhookSecret,
	})

	h := handlers.NewHandlers(services, db, esClient)
	authMW := middleware.BasicAuth(repos.Users, redisClient)
	server := api.NewServer(cfg, h, authMW)

	go func() {
		slog.Info("Starting API server", "port", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}

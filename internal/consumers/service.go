package consumers

import (
	"context"
	"log/slog"

	"tulpar/internal/config"
	"tulpar/internal/database"
	"tulpar/internal/external"
	"tulpar/internal/messaging"
	"tulpar/internal/models"
	"tulpar/internal/repository"
)

// ConsumerService подписывается на доменные события и рассылает уведомления
// пользователям вне пути запроса.
type ConsumerService struct {
	db       *database.DB
	nats     *messaging.Client
	repos    *repository.Repositories
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(db)
	notifier := external.NewNotifierClient(cfg.Notifier)
	handlers := NewHandlers(repos, notifier)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		handlers: handlers,
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	if _, err := cs.nats.SubscribeQueue(models.EventRegistrationConfirmed, "consumers", "registration-confirmed", cs.handlers.HandleRegistrationConfirmed); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue(models.EventRegistrationWaiting, "consumers", "registration-waiting", cs.handlers.HandleRegistrationWaiting); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue(models.EventRegistrationPromoted, "consumers", "registration-promoted", cs.handlers.HandleRegistrationPromoted); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue(models.EventRegistrationCancelled, "consumers", "registration-cancelled", cs.handlers.HandleRegistrationCancelled); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue(models.EventPaymentRefundRequired, "consumers", "payment-refund-required", cs.handlers.HandlePaymentRefundRequired); err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}

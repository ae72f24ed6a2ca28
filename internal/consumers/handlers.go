package consumers

import (
	"context"
	"encoding/json"
	"log/slog"

	"tulpar/internal/external"
	"tulpar/internal/models"
	"tulpar/internal/repository"

	"github.com/nats-io/stan.go"
)

type Handlers struct {
	repos    *repository.Repositories
	notifier *external.NotifierClient
}

func NewHandlers(repos *repository.Repositories, notifier *external.NotifierClient) *Handlers {
	return &Handlers{
		repos:    repos,
		notifier: notifier,
	}
}

func (h *Handlers) HandleRegistrationConfirmed(m *stan.Msg) {
	var event models.RegistrationConfirmedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal registration confirmed event", "error", err)
		return
	}

	slog.Info("Processing registration confirmed event",
		"event_id", event.EventID, "user_id", event.UserID, "paid", event.Paid)

	if err := h.notifier.NotifyRegistered(context.Background(), event.UserID, event.EventID); err != nil {
		slog.Error("Failed to send registration notification", "error", err,
			"event_id", event.EventID, "user_id", event.UserID)
		// Не ack: сообщение будет доставлено повторно
		return
	}

	m.Ack()
}

func (h *Handlers) HandleRegistrationWaiting(m *stan.Msg) {
	var event models.RegistrationWaitingEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal registration waiting event", "error", err)
		return
	}

	slog.Info("Processing registration waiting event",
		"event_id", event.EventID, "user_id", event.UserID)

	if err := h.notifier.NotifyWaiting(context.Background(), event.UserID, event.EventID); err != nil {
		slog.Error("Failed to send waitlist notification", "error", err,
			"event_id", event.EventID, "user_id", event.UserID)
		return
	}

	m.Ack()
}

func (h *Handlers) HandleRegistrationPromoted(m *stan.Msg) {
	var event models.RegistrationPromotedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal registration promoted event", "error", err)
		return
	}

	slog.Info("Processing registration promoted event",
		"event_id", event.EventID, "user_id", event.UserID)

	if err := h.notifier.NotifyPromoted(context.Background(), event.UserID, event.EventID); err != nil {
		slog.Error("Failed to send promotion notification", "error", err,
			"event_id", event.EventID, "user_id", event.UserID)
		return
	}

	m.Ack()
}

func (h *Handlers) HandleRegistrationCancelled(m *stan.Msg) {
	var event models.RegistrationCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal registration cancelled event", "error", err)
		return
	}

	slog.Info("Processing registration cancelled event",
		"event_id", event.EventID, "user_id", event.UserID, "was_waiting", event.WasWaiting)

	// Отмена не требует уведомления, событие фиксируется для аналитики
	m.Ack()
}

func (h *Handlers) HandlePaymentRefundRequired(m *stan.Msg) {
	var event models.PaymentRefundRequiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal refund required event", "error", err)
		return
	}

	slog.Warn("Processing refund required event",
		"event_id", event.EventID, "user_id", event.UserID,
		"internal_order_id", event.InternalOrderID, "amount", event.Amount)

	if err := h.notifier.NotifyRefundRequired(context.Background(), event.UserID, event.EventID); err != nil {
		slog.Error("Failed to send refund notification", "error", err,
			"event_id", event.EventID, "user_id", event.UserID)
		return
	}

	m.Ack()
}

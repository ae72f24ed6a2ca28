package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tulpar/internal/metrics"
	"tulpar/internal/models"
	"tulpar/internal/payments"
	"tulpar/internal/repository"

	"github.com/google/uuid"
)

// RegistrationService координирует места, регистрации, лист ожидания и
// платежи. Все гонки за последнее место разрешаются условными UPDATE в
// репозиториях, сервис только интерпретирует их результат.
type RegistrationService struct {
	events        repository.EventRepository
	registrations repository.RegistrationRepository
	waitlist      repository.WaitlistRepository
	payments      repository.PaymentIntentRepository
	publisher     Publisher
	gateway       OrderCreator
	secrets       Secrets
}

func NewRegistrationService(
	events repository.EventRepository,
	registrations repository.RegistrationRepository,
	waitlist repository.WaitlistRepository,
	paymentIntents repository.PaymentIntentRepository,
	publisher Publisher,
	gateway OrderCreator,
	secrets Secrets,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		waitlist:      waitlist,
		payments:      paymentIntents,
		publisher:     publisher,
		gateway:       gateway,
		secrets:       secrets,
	}
}

// Register обрабатывает запрос на участие в событии. Для бесплатных событий
// место выдается сразу или пользователь попадает в лист ожидания. Для
// платных создается payment intent, место не удерживается до оплаты.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID int64) (*models.RegisterResponse, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsClosed {
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrEventClosed
	}

	exists, err := s.registrations.Exists(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrAlreadyRegistered
	}

	if event.Free() {
		return s.registerFree(ctx, event, userID)
	}
	return s.registerPaid(ctx, event, userID)
}

func (s *RegistrationService) registerFree(ctx context.Context, event *models.Event, userID int64) (*models.RegisterResponse, error) {
	granted, err := s.events.TryIncrementRegistered(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	if !granted {
		metrics.SeatConflictsTotal.Inc()
		return s.enqueueWaitlist(ctx, event.ID, userID)
	}

	if _, err := s.registrations.Create(ctx, event.ID, userID); err != nil {
		// Seat was claimed but the pair already exists: a concurrent request
		// from the same user won. Release the extra seat.
		s.releaseSeat(ctx, event.ID)
		if errors.Is(err, models.ErrDuplicateRegistration) {
			return nil, models.ErrAlreadyRegistered
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(models.RegistrationStatusRegistered).Inc()
	s.publish(models.EventRegistrationConfirmed, models.RegistrationConfirmedEvent{
		EventID:   event.ID,
		UserID:    userID,
		Paid:      false,
		Timestamp: time.Now(),
	})

	return &models.RegisterResponse{Status: models.RegistrationStatusRegistered}, nil
}

func (s *RegistrationService) registerPaid(ctx context.Context, event *models.Event, userID int64) (*models.RegisterResponse, error) {
	// Платные события не используют лист ожидания: место можно получить
	// только через оплату. Регистрация на заполненное событие отклоняется,
	// после освобождения места пользователь может попробовать снова.
	// The snapshot check is advisory; the binding capacity decision happens
	// when the payment is confirmed.
	if event.RegisteredCount >= event.MaxCapacity {
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrEventFull
	}

	internalOrderID := uuid.NewString()
	providerOrderID, err := s.gateway.CreateOrder(ctx, internalOrderID, event.Price, event.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	intent := &models.PaymentIntent{
		InternalOrderID: internalOrderID,
		ProviderOrderID: providerOrderID,
		EventID:         event.ID,
		UserID:          userID,
		Amount:          event.Price,
		Currency:        event.Currency,
		Status:          models.IntentStatusCreated,
	}
	if err := s.payments.Create(ctx, intent); err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(models.RegistrationStatusPaymentPending).Inc()
	return &models.RegisterResponse{
		Status:          models.RegistrationStatusPaymentPending,
		InternalOrderID: internalOrderID,
		ProviderOrderID: providerOrderID,
		Amount:          event.Price,
		Currency:        event.Currency,
	}, nil
}

func (s *RegistrationService) enqueueWaitlist(ctx context.Context, eventID, userID int64) (*models.RegisterResponse, error) {
	if _, err := s.waitlist.Enqueue(ctx, eventID, userID); err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(models.RegistrationStatusWaiting).Inc()
	s.publish(models.EventRegistrationWaiting, models.RegistrationWaitingEvent{
		EventID:   eventID,
		UserID:    userID,
		Timestamp: time.Now(),
	})

	return &models.RegisterResponse{Status: models.RegistrationStatusWaiting}, nil
}

// VerifyPayment обрабатывает клиентское подтверждение оплаты. Подпись
// проверяется до любого обращения к хранилищу. Intent, уже отмеченный paid
// (webhook пришел раньше), принимается, подтверждение идемпотентно.
func (s *RegistrationService) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if !payments.VerifyCheckoutSignature(s.secrets.CheckoutSecret, req.ProviderOrderID, req.ProviderPaymentID, req.Signature) {
		return nil, models.ErrTamperedPayment
	}

	intent, err := s.payments.GetByInternalOrderID(ctx, req.InternalOrderID)
	if err != nil {
		return nil, err
	}
	if intent.ProviderOrderID != req.ProviderOrderID {
		return nil, models.ErrNoMatchingIntent
	}

	intent, err = s.payments.MarkPaid(ctx, req.ProviderOrderID, req.ProviderPaymentID, req.Signature, true)
	if err != nil {
		return nil, err
	}

	if err := s.grantPaidSeat(ctx, intent); err != nil {
		return nil, err
	}
	return &models.VerifyPaymentResponse{Status: models.RegistrationStatusRegistered}, nil
}

// Webhook processing results
const (
	WebhookResultApplied   = "applied"
	WebhookResultDuplicate = "duplicate"
	WebhookResultIgnored   = "ignored"
)

// HandleWebhook обрабатывает асинхронное уведомление шлюза. Тело проверяется
// по HMAC до парсинга. Webhook только фиксирует факт оплаты, место выдается
// исключительно через VerifyPayment. Повторная доставка для уже оплаченного
// intent считается дубликатом.
func (s *RegistrationService) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	if !payments.VerifyWebhookSignature(s.secrets.WebhookSecret, body, signature) {
		metrics.WebhookResultsTotal.WithLabelValues("invalid_signature").Inc()
		return "", models.ErrTamperedPayment
	}

	var payload models.PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if payload.Event != "payment.captured" {
		metrics.WebhookResultsTotal.WithLabelValues(WebhookResultIgnored).Inc()
		return WebhookResultIgnored, nil
	}

	payment := payload.Payload.Payment.Entity
	intent, err := s.payments.MarkPaid(ctx, payment.OrderID, payment.ID, "", false)
	if errors.Is(err, models.ErrNoMatchingIntent) {
		// Either a replay for an intent already processed, or an order we
		// never issued.
		existing, getErr := s.payments.GetByProviderOrderID(ctx, payment.OrderID)
		if getErr != nil {
			metrics.WebhookResultsTotal.WithLabelValues("unmatched").Inc()
			return "", models.ErrNoMatchingIntent
		}
		if existing.Status == models.IntentStatusPaid || existing.Status == models.IntentStatusRefundRequired {
			metrics.WebhookResultsTotal.WithLabelValues(WebhookResultDuplicate).Inc()
			return WebhookResultDuplicate, nil
		}
		metrics.WebhookResultsTotal.WithLabelValues("unmatched").Inc()
		return "", models.ErrNoMatchingIntent
	}
	if err != nil {
		return "", err
	}

	slog.Info("Payment confirmed by webhook",
		"event_id", intent.EventID, "user_id", intent.UserID,
		"internal_order_id", intent.InternalOrderID)
	metrics.WebhookResultsTotal.WithLabelValues(WebhookResultApplied).Inc()
	return WebhookResultApplied, nil
}

// grantPaidSeat выдает место по оплаченному intent. Если пара (event, user)
// уже зарегистрирована, выдача идемпотентна и intent не трогается. Только
// при отсутствии регистрации и мест intent помечается refund_required.
func (s *RegistrationService) grantPaidSeat(ctx context.Context, intent *models.PaymentIntent) error {
	// Уже сидящий пользователь никогда не уходит в refund_required
	seated, err := s.registrations.Exists(ctx, intent.EventID, intent.UserID)
	if err != nil {
		return err
	}
	if seated {
		return nil
	}

	granted, err := s.events.TryIncrementRegistered(ctx, intent.EventID)
	if err != nil {
		return err
	}

	if !granted {
		metrics.SeatConflictsTotal.Inc()
		return s.markRefundRequired(ctx, intent)
	}

	if _, err := s.registrations.Create(ctx, intent.EventID, intent.UserID); err != nil {
		s.releaseSeat(ctx, intent.EventID)
		if errors.Is(err, models.ErrDuplicateRegistration) {
			// Confirmation already landed via the other path. Nothing to do.
			return nil
		}
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues(models.RegistrationStatusRegistered).Inc()
	s.publish(models.EventRegistrationConfirmed, models.RegistrationConfirmedEvent{
		EventID:   intent.EventID,
		UserID:    intent.UserID,
		Paid:      true,
		Timestamp: time.Now(),
	})
	return nil
}

func (s *RegistrationService) markRefundRequired(ctx context.Context, intent *models.PaymentIntent) error {
	if err := s.payments.MarkRefundRequired(ctx, intent.InternalOrderID); err != nil {
		return err
	}

	metrics.RefundsRequiredTotal.Inc()
	slog.Warn("Payment captured without an available seat",
		"event_id", intent.EventID, "user_id", intent.UserID,
		"internal_order_id", intent.InternalOrderID)

	s.publish(models.EventPaymentRefundRequired, models.PaymentRefundRequiredEvent{
		EventID:         intent.EventID,
		UserID:          intent.UserID,
		InternalOrderID: intent.InternalOrderID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Timestamp:       time.Now(),
	})
	return models.ErrSeatUnavailableRefundRequired
}

// Cancel снимает подтвержденную регистрацию или убирает пользователя из
// листа ожидания. Освобожденное место сразу отдается первому в очереди.
func (s *RegistrationService) Cancel(ctx context.Context, eventID, userID int64) error {
	err := s.registrations.Delete(ctx, eventID, userID)
	if err == nil {
		s.releaseSeat(ctx, eventID)
		if cancelErr := s.payments.CancelForAttempt(ctx, eventID, userID); cancelErr != nil {
			slog.Error("Failed to cancel payment intents", "error", cancelErr,
				"event_id", eventID, "user_id", userID)
		}

		s.publish(models.EventRegistrationCancelled, models.RegistrationCancelledEvent{
			EventID:    eventID,
			UserID:     userID,
			WasWaiting: false,
			Timestamp:  time.Now(),
		})

		s.promote(ctx, eventID)
		return nil
	}
	if !errors.Is(err, models.ErrNotRegistered) {
		return err
	}

	// Not registered: maybe waiting.
	if err := s.waitlist.Remove(ctx, eventID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotRegistered
		}
		return err
	}

	if cancelErr := s.payments.CancelForAttempt(ctx, eventID, userID); cancelErr != nil {
		slog.Error("Failed to cancel payment intents", "error", cancelErr,
			"event_id", eventID, "user_id", userID)
	}

	s.publish(models.EventRegistrationCancelled, models.RegistrationCancelledEvent{
		EventID:    eventID,
		UserID:     userID,
		WasWaiting: true,
		Timestamp:  time.Now(),
	})
	return nil
}

// promote пытается отдать одно освобожденное место первому в очереди.
// Если место перехватила прямая регистрация, запись из очереди не
// возвращается обратно, пользователь уведомляется и может встать заново.
func (s *RegistrationService) promote(ctx context.Context, eventID int64) {
	for {
		entry, err := s.waitlist.DequeueOldest(ctx, eventID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				slog.Error("Failed to dequeue waitlist entry", "error", err, "event_id", eventID)
			}
			return
		}

		granted, err := s.events.TryIncrementRegistered(ctx, eventID)
		if err != nil {
			slog.Error("Failed to claim seat for promotion", "error", err,
				"event_id", eventID, "user_id", entry.UserID)
			return
		}
		if !granted {
			metrics.SeatConflictsTotal.Inc()
			slog.Warn("Seat lost to a direct registration during promotion",
				"event_id", eventID, "user_id", entry.UserID)
			return
		}

		if _, err := s.registrations.Create(ctx, eventID, entry.UserID); err != nil {
			s.releaseSeat(ctx, eventID)
			if errors.Is(err, models.ErrDuplicateRegistration) {
				// Stale entry for an already registered user, take the next one.
				continue
			}
			slog.Error("Failed to create registration for promotion", "error", err,
				"event_id", eventID, "user_id", entry.UserID)
			return
		}

		metrics.WaitlistPromotionsTotal.Inc()
		s.publish(models.EventRegistrationPromoted, models.RegistrationPromotedEvent{
			EventID:   eventID,
			UserID:    entry.UserID,
			Timestamp: time.Now(),
		})
		return
	}
}

// MyRegistrations возвращает регистрации и позиции пользователя в листах
// ожидания.
func (s *RegistrationService) MyRegistrations(ctx context.Context, userID int64) (*models.MyRegistrationsResponse, error) {
	registrations, err := s.registrations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	waiting, err := s.waitlist.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &models.MyRegistrationsResponse{
		Registrations: make([]models.RegistrationItem, 0, len(registrations)),
		Waitlist:      make([]models.WaitlistItem, 0, len(waiting)),
	}
	for _, reg := range registrations {
		resp.Registrations = append(resp.Registrations, models.RegistrationItem{
			EventID:   reg.EventID,
			CreatedAt: reg.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, entry := range waiting {
		resp.Waitlist = append(resp.Waitlist, models.WaitlistItem{
			EventID:  entry.EventID,
			JoinedAt: entry.JoinedAt.Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (s *RegistrationService) releaseSeat(ctx context.Context, eventID int64) {
	if err := s.events.DecrementRegistered(ctx, eventID); err != nil {
		slog.Error("Failed to release seat", "error", err, "event_id", eventID)
	}
}

func (s *RegistrationService) publish(subject string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(subject, event); err != nil {
		slog.Error("Failed to publish event", "error", err, "subject", subject)
	}
}

package service

import (
	"context"

	"tulpar/internal/models"
	"tulpar/internal/repository"
)

// Publisher публикует доменные события. Публикация не должна блокировать
// основной поток, ошибки только логируются.
type Publisher interface {
	Publish(subject string, event interface{}) error
}

// OrderCreator создает заказ в платежном шлюзе
type OrderCreator interface {
	CreateOrder(ctx context.Context, internalOrderID string, amount int64, currency string) (string, error)
}

// EventSearcher ищет и индексирует события (Elasticsearch)
type EventSearcher interface {
	Search(ctx context.Context, query, date string, page, pageSize int) ([]models.Event, error)
	IndexEvent(ctx context.Context, event *models.Event) error
}

// PageCache кэширует сериализованные страницы листинга событий
type PageCache interface {
	GetEventsPage(ctx context.Context, key string) ([]byte, error)
	SetEventsPage(ctx context.Context, key string, payload []byte) error
}

// Secrets holds the keys used to validate payment confirmations.
type Secrets struct {
	// CheckoutSecret signs providerOrderID|providerPaymentID pairs returned
	// to the client after checkout.
	CheckoutSecret string
	// WebhookSecret signs raw webhook bodies.
	WebhookSecret string
}

type Services struct {
	Events        *EventService
	Registrations *RegistrationService
}

// NewServices собирает сервисный слой. searcher, cache и publisher могут быть
// nil, тогда соответствующая функциональность отключена.
func NewServices(repos *repository.Repositories, publisher Publisher, gateway OrderCreator, searcher EventSearcher, pageCache PageCache, secrets Secrets) *Services {
	return &Services{
		Events: NewEventService(repos.Events, searcher, pageCache),
		Registrations: NewRegistrationService(
			repos.Events, repos.Registrations, repos.Waitlist, repos.Payments,
			publisher, gateway, secrets,
		),
	}
}

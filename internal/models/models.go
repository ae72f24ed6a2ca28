package models

// Registration outcome statuses returned to clients
const (
	RegistrationStatusRegistered     = "registered"
	RegistrationStatusWaiting        = "waiting"
	RegistrationStatusPaymentPending = "payment_pending"
)

// CreateEventRequest - модель для создания события
type CreateEventRequest struct {
	Title         string  `json:"title" binding:"required"`
	Description   *string `json:"description,omitempty"`
	MaxCapacity   int     `json:"max_capacity" binding:"required,min=1"`
	Price         int64   `json:"price" binding:"min=0"`
	Currency      string  `json:"currency,omitempty"`
	DatetimeStart string  `json:"datetime_start" binding:"required"`
}

// CreateEventResponse - модель ответа при создании события
type CreateEventResponse struct {
	ID int64 `json:"id"`
}

// ListEventsResponseItem - элемент списка событий
type ListEventsResponseItem struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	MaxCapacity     int    `json:"max_capacity"`
	RegisteredCount int    `json:"registered_count"`
	IsClosed        bool   `json:"is_closed"`
	Price           int64  `json:"price"`
}

// ListEventsResponse - список событий
type ListEventsResponse []ListEventsResponseItem

// RegisterResponse is returned by POST /api/events/:id/register.
// Payment fields are set only when Status is "payment_pending".
type RegisterResponse struct {
	Status          string `json:"status"`
	InternalOrderID string `json:"internal_order_id,omitempty"`
	ProviderOrderID string `json:"provider_order_id,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
}

// VerifyPaymentRequest - модель клиентского подтверждения оплаты
type VerifyPaymentRequest struct {
	InternalOrderID   string `json:"internal_order_id" binding:"required"`
	ProviderOrderID   string `json:"provider_order_id" binding:"required"`
	ProviderPaymentID string `json:"provider_payment_id" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
}

// VerifyPaymentResponse reports the outcome of a verified payment.
type VerifyPaymentResponse struct {
	Status string `json:"status"`
}

// PaymentWebhookPayload - модель для webhook уведомлений от платежного шлюза.
// The raw body is HMAC-verified before this structure is trusted.
type PaymentWebhookPayload struct {
	Event   string                `json:"event" binding:"required"`
	Payload PaymentWebhookWrapper `json:"payload" binding:"required"`
}

// PaymentWebhookWrapper nests the payment entity the way the gateway sends it.
type PaymentWebhookWrapper struct {
	Payment PaymentWebhookEntity `json:"payment" binding:"required"`
}

// PaymentWebhookEntity carries the fields the coordinator needs; everything
// else in the gateway payload is ignored.
type PaymentWebhookEntity struct {
	Entity PaymentEntity `json:"entity" binding:"required"`
}

// PaymentEntity is the payment object inside a webhook notification.
type PaymentEntity struct {
	ID      string `json:"id" binding:"required"`
	OrderID string `json:"order_id" binding:"required"`
	Status  string `json:"status" binding:"required"`
	Amount  int64  `json:"amount"`
}

// MyRegistrationsResponse - регистрации и позиции в листе ожидания пользователя
type MyRegistrationsResponse struct {
	Registrations []RegistrationItem `json:"registrations"`
	Waitlist      []WaitlistItem     `json:"waitlist"`
}

// RegistrationItem - элемент списка регистраций
type RegistrationItem struct {
	EventID   int64  `json:"event_id"`
	CreatedAt string `json:"created_at"`
}

// WaitlistItem - элемент списка ожидания
type WaitlistItem struct {
	EventID  int64  `json:"event_id"`
	JoinedAt string `json:"joined_at"`
}

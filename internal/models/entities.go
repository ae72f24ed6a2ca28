package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	Surname      string    `json:"surname" db:"surname"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Event represents a capacity-limited event. RegisteredCount is only ever
// mutated through the conditional increment/decrement in EventRepository,
// never by a plain read-modify-write.
type Event struct {
	ID              int64   `json:"id" db:"id"`
	Title           string  `json:"title" db:"title"`
	Description     *string `json:"description" db:"description"`
	MaxCapacity     int     `json:"max_capacity" db:"max_capacity"`
	RegisteredCount int     `json:"registered_count" db:"registered_count"`
	IsClosed        bool    `json:"is_closed" db:"is_closed"`
	// Price in minor currency units; 0 means the event is free.
	Price         int64     `json:"price" db:"price"`
	Currency      string    `json:"currency" db:"currency"`
	DatetimeStart time.Time `json:"datetime_start" db:"datetime_start"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Free reports whether the event requires no payment.
func (e *Event) Free() bool {
	return e.Price == 0
}

// Registration represents a confirmed seat for (event, user).
// Unique per (event_id, user_id); its existence implies one unit of
// registered_count.
type Registration struct {
	ID        int64     `json:"id" db:"id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WaitlistEntry represents a user waiting for a freed seat.
// Promotion order is strictly joined_at ascending.
type WaitlistEntry struct {
	ID       int64     `json:"id" db:"id"`
	EventID  int64     `json:"event_id" db:"event_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Payment intent statuses
const (
	IntentStatusCreated        = "created"
	IntentStatusPaid           = "paid"
	IntentStatusFailed         = "failed"
	IntentStatusCancelled      = "cancelled"
	IntentStatusRefundRequired = "refund_required"
)

// PaymentIntent tracks the lifecycle of one payment attempt tied to one
// registration attempt. No seat is held while the intent is in "created".
type PaymentIntent struct {
	ID                int64     `json:"id" db:"id"`
	InternalOrderID   string    `json:"internal_order_id" db:"internal_order_id"`
	ProviderOrderID   string    `json:"provider_order_id" db:"provider_order_id"`
	EventID           int64     `json:"event_id" db:"event_id"`
	UserID            int64     `json:"user_id" db:"user_id"`
	Amount            int64     `json:"amount" db:"amount"`
	Currency          string    `json:"currency" db:"currency"`
	Status            string    `json:"status" db:"status"`
	ProviderPaymentID *string   `json:"provider_payment_id" db:"provider_payment_id"`
	Signature         *string   `json:"-" db:"signature"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

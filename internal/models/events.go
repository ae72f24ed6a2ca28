package models

import "time"

// NATS Event Types
const (
	EventRegistrationConfirmed = "registration.confirmed"
	EventRegistrationWaiting   = "registration.waiting"
	EventRegistrationPromoted  = "registration.promoted"
	EventRegistrationCancelled = "registration.cancelled"
	EventPaymentRefundRequired = "payment.refund_required"
)

// RegistrationConfirmedEvent represents a confirmed registration
type RegistrationConfirmedEvent struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Paid      bool      `json:"paid"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationWaitingEvent represents a user placed on the waitlist
type RegistrationWaitingEvent struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationPromotedEvent represents a waitlisted user promoted to a seat
type RegistrationPromotedEvent struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationCancelledEvent represents a cancelled registration or
// waitlist withdrawal
type RegistrationCancelledEvent struct {
	EventID    int64     `json:"event_id"`
	UserID     int64     `json:"user_id"`
	WasWaiting bool      `json:"was_waiting"`
	Timestamp  time.Time `json:"timestamp"`
}

// PaymentRefundRequiredEvent represents a captured payment that could not be
// matched with a seat. Requires manual or automated refund handling.
type PaymentRefundRequiredEvent struct {
	EventID         int64     `json:"event_id"`
	UserID          int64     `json:"user_id"`
	InternalOrderID string    `json:"internal_order_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

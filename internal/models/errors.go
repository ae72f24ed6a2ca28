package models

import "errors"

var (
	// Registration errors
	ErrEventClosed           = errors.New("event is closed for registration")
	ErrAlreadyRegistered     = errors.New("user already registered for this event")
	ErrDuplicateRegistration = errors.New("registration already exists")
	ErrEventFull             = errors.New("event is full")
	ErrNotRegistered         = errors.New("user is not registered for this event")

	// Waitlist errors
	ErrDuplicateWaitlistEntry = errors.New("user is already on the waitlist")

	// Payment errors
	ErrTamperedPayment               = errors.New("payment signature verification failed")
	ErrNoMatchingIntent              = errors.New("no matching payment intent in an acceptable state")
	ErrSeatUnavailableRefundRequired = errors.New("payment captured but no seat available, refund required")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("user is not authorized")
)

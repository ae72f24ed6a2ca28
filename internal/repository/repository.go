package repository

import (
	"context"
	"errors"
	"time"

	"tulpar/internal/database"
	"tulpar/internal/models"

	"github.com/lib/pq"
)

// EventRepository owns the authoritative seat counter. All mutations of
// registered_count go through TryIncrementRegistered / DecrementRegistered,
// each a single conditional UPDATE at the storage layer.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context, query, date string, page, pageSize int) ([]models.Event, error)
	TryIncrementRegistered(ctx context.Context, eventID int64) (bool, error)
	DecrementRegistered(ctx context.Context, eventID int64) error
	ReconcileRegisteredCounts(ctx context.Context) (int64, error)
}

// RegistrationRepository records confirmed (event, user) pairs. Uniqueness is
// enforced by the database constraint, not a prior existence check.
type RegistrationRepository interface {
	Create(ctx context.Context, eventID, userID int64) (*models.Registration, error)
	Delete(ctx context.Context, eventID, userID int64) error
	Exists(ctx context.Context, eventID, userID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Registration, error)
}

// WaitlistRepository keeps the FIFO waitlist. DequeueOldest removes and
// returns the earliest entry atomically so concurrent promoters never pick
// the same entry.
type WaitlistRepository interface {
	Enqueue(ctx context.Context, eventID, userID int64) (*models.WaitlistEntry, error)
	DequeueOldest(ctx context.Context, eventID int64) (*models.WaitlistEntry, error)
	Remove(ctx context.Context, eventID, userID int64) error
	ListByUser(ctx context.Context, userID int64) ([]models.WaitlistEntry, error)
}

// PaymentIntentRepository tracks payment attempt lifecycles. MarkPaid is a
// conditional transition keyed on the current status set.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByInternalOrderID(ctx context.Context, internalOrderID string) (*models.PaymentIntent, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentIntent, error)
	MarkPaid(ctx context.Context, providerOrderID, providerPaymentID, signature string, allowPaid bool) (*models.PaymentIntent, error)
	MarkRefundRequired(ctx context.Context, internalOrderID string) error
	CancelForAttempt(ctx context.Context, eventID, userID int64) error
	ExpireStale(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type Repositories struct {
	Events        EventRepository
	Registrations RegistrationRepository
	Waitlist      WaitlistRepository
	Payments      PaymentIntentRepository
	Users         UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:        NewEventRepository(db),
		Registrations: NewRegistrationRepository(db),
		Waitlist:      NewWaitlistRepository(db),
		Payments:      NewPaymentIntentRepository(db),
		Users:         NewUserRepository(db),
	}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (code 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tulpar/internal/database"
	"tulpar/internal/models"
)

type paymentIntentRepository struct {
	db *database.DB
}

func NewPaymentIntentRepository(db *database.DB) PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

const intentColumns = `id, internal_order_id, provider_order_id, event_id, user_id, amount, currency, status, provider_payment_id, signature, created_at, updated_at`

func scanIntent(row interface{ Scan(...interface{}) error }) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := row.Scan(
		&intent.ID, &intent.InternalOrderID, &intent.ProviderOrderID,
		&intent.EventID, &intent.UserID, &intent.Amount, &intent.Currency,
		&intent.Status, &intent.ProviderPaymentID, &intent.Signature,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (internal_order_id, provider_order_id, event_id, user_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		intent.InternalOrderID, intent.ProviderOrderID,
		intent.EventID, intent.UserID, intent.Amount, intent.Currency, intent.Status,
	).Scan(&intent.ID, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *paymentIntentRepository) GetByInternalOrderID(ctx context.Context, internalOrderID string) (*models.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE internal_order_id = $1`

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, internalOrderID))
	if err == sql.ErrNoRows {
		return nil, models.ErrNoMatchingIntent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

func (r *paymentIntentRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE provider_order_id = $1`

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, providerOrderID))
	if err == sql.ErrNoRows {
		return nil, models.ErrNoMatchingIntent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

// MarkPaid transitions the intent to paid with a single conditional UPDATE.
// With allowPaid false only a 'created' intent qualifies, which is the strict
// path for webhooks racing each other. With allowPaid true an intent already
// marked paid also qualifies, which lets a client verify land after the
// webhook already confirmed the same payment. Returns ErrNoMatchingIntent
// when no row is in an eligible status.
func (r *paymentIntentRepository) MarkPaid(ctx context.Context, providerOrderID, providerPaymentID, signature string, allowPaid bool) (*models.PaymentIntent, error) {
	statusCond := `status = 'created'`
	if allowPaid {
		statusCond = `status IN ('created', 'paid')`
	}

	// Webhook не несет checkout-подпись, колонка остается NULL
	var sig interface{}
	if signature != "" {
		sig = signature
	}

	query := `
		UPDATE payment_intents
		SET status = 'paid', provider_payment_id = $2, signature = COALESCE($3, signature), updated_at = NOW()
		WHERE provider_order_id = $1 AND ` + statusCond + `
		RETURNING ` + intentColumns

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, providerOrderID, providerPaymentID, sig))
	if err == sql.ErrNoRows {
		return nil, models.ErrNoMatchingIntent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment intent paid: %w", err)
	}
	return intent, nil
}

// MarkRefundRequired flags a paid intent whose seat could not be granted.
// Only a paid intent can need a refund.
func (r *paymentIntentRepository) MarkRefundRequired(ctx context.Context, internalOrderID string) error {
	query := `
		UPDATE payment_intents
		SET status = 'refund_required', updated_at = NOW()
		WHERE internal_order_id = $1 AND status = 'paid'`

	result, err := r.db.ExecContext(ctx, query, internalOrderID)
	if err != nil {
		return fmt.Errorf("failed to mark payment intent refund_required: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNoMatchingIntent
	}
	return nil
}

// CancelForAttempt cancels any still-open intents for the (event, user)
// pair, used when the user cancels their registration attempt.
func (r *paymentIntentRepository) CancelForAttempt(ctx context.Context, eventID, userID int64) error {
	query := `
		UPDATE payment_intents
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2 AND status IN ('created', 'paid')`

	if _, err := r.db.ExecContext(ctx, query, eventID, userID); err != nil {
		return fmt.Errorf("failed to cancel payment intents: %w", err)
	}
	return nil
}

// ExpireStale cancels intents that were created before the cutoff and never
// progressed. Returns the number of intents expired.
func (r *paymentIntentRepository) ExpireStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE payment_intents
		SET status = 'cancelled', updated_at = NOW()
		WHERE status = 'created' AND created_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale payment intents: %w", err)
	}
	return result.RowsAffected()
}

func (r *paymentIntentRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM payment_intents WHERE status = $1`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payment intents: %w", err)
	}
	return count, nil
}

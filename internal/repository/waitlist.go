package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tulpar/internal/database"
	"tulpar/internal/models"
)

type waitlistRepository struct {
	db *database.DB
}

func NewWaitlistRepository(db *database.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (r *waitlistRepository) Enqueue(ctx context.Context, eventID, userID int64) (*models.WaitlistEntry, error) {
	query := `
		INSERT INTO waitlist_entries (event_id, user_id)
		VALUES ($1, $2)
		RETURNING id, joined_at`

	entry := &models.WaitlistEntry{EventID: eventID, UserID: userID}
	err := r.db.QueryRowContext(ctx, query, eventID, userID).
		Scan(&entry.ID, &entry.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateWaitlistEntry
		}
		return nil, fmt.Errorf("failed to enqueue waitlist entry: %w", err)
	}
	return entry, nil
}

// DequeueOldest removes and returns the earliest entry for the event. The
// inner SELECT takes a row lock with SKIP LOCKED, so concurrent promoters
// each dequeue a distinct entry instead of blocking or double-promoting.
// Returns ErrNotFound when the waitlist is empty.
func (r *waitlistRepository) DequeueOldest(ctx context.Context, eventID int64) (*models.WaitlistEntry, error) {
	query := `
		DELETE FROM waitlist_entries
		WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE event_id = $1
			ORDER BY joined_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, user_id, joined_at`

	var entry models.WaitlistEntry
	err := r.db.QueryRowContext(ctx, query, eventID).
		Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *waitlistRepository) Remove(ctx context.Context, eventID, userID int64) error {
	query := `DELETE FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove waitlist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *waitlistRepository) ListByUser(ctx context.Context, userID int64) ([]models.WaitlistEntry, error) {
	query := `
		SELECT id, event_id, user_id, joined_at
		FROM waitlist_entries
		WHERE user_id = $1
		ORDER BY joined_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	defer rows.Close()

	var entries []models.WaitlistEntry
	for rows.Next() {
		var entry models.WaitlistEntry
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

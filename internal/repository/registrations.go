package repository

import (
	"context"
	"fmt"

	"tulpar/internal/database"
	"tulpar/internal/models"
)

type registrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

// Create inserts the (event, user) pair and relies on the unique constraint
// to reject duplicates, so concurrent inserts for the same pair resolve at
// the database rather than by a check-then-insert race.
func (r *registrationRepository) Create(ctx context.Context, eventID, userID int64) (*models.Registration, error) {
	query := `
		INSERT INTO registrations (event_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	registration := &models.Registration{EventID: eventID, UserID: userID}
	err := r.db.QueryRowContext(ctx, query, eventID, userID).
		Scan(&registration.ID, &registration.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return registration, nil
}

func (r *registrationRepository) Delete(ctx context.Context, eventID, userID int64) error {
	query := `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotRegistered
	}
	return nil
}

func (r *registrationRepository) Exists(ctx context.Context, eventID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return exists, nil
}

func (r *registrationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Registration, error) {
	query := `
		SELECT id, event_id, user_id, created_at
		FROM registrations
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		registrations = append(registrations, reg)
	}
	return registrations, rows.Err()
}

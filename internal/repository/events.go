package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"tulpar/internal/database"
	"tulpar/internal/models"
)

type eventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, title, description, max_capacity, registered_count, is_closed, price, currency, datetime_start, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID, &event.Title, &event.Description,
		&event.MaxCapacity, &event.RegisteredCount, &event.IsClosed,
		&event.Price, &event.Currency, &event.DatetimeStart,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, max_capacity, is_closed, price, currency, datetime_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, registered_count, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		event.Title, event.Description, event.MaxCapacity,
		event.IsClosed, event.Price, event.Currency, event.DatetimeStart,
	).Scan(&event.ID, &event.RegisteredCount, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// List is the Postgres fallback for event search when Elasticsearch is
// unavailable. ILIKE over title/description, optional same-day filter.
func (r *eventRepository) List(ctx context.Context, query, date string, page, pageSize int) ([]models.Event, error) {
	var conditions []string
	var args []interface{}

	if query != "" {
		args = append(args, "%"+query+"%")
		idx := strconv.Itoa(len(args))
		conditions = append(conditions, "(title ILIKE $"+idx+" OR description ILIKE $"+idx+")")
	}
	if date != "" {
		args = append(args, date)
		conditions = append(conditions, "datetime_start::date = $"+strconv.Itoa(len(args))+"::date")
	}

	sqlQuery := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, pageSize)
	sqlQuery += " ORDER BY datetime_start ASC, id ASC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, (page-1)*pageSize)
	sqlQuery += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// TryIncrementRegistered claims one seat with a single conditional UPDATE.
// Returns false when the event is already at capacity. The guard and the
// increment are one statement, so two concurrent claims of the last seat
// cannot both succeed.
func (r *eventRepository) TryIncrementRegistered(ctx context.Context, eventID int64) (bool, error) {
	query := `
		UPDATE events
		SET registered_count = registered_count + 1, updated_at = NOW()
		WHERE id = $1 AND registered_count < max_capacity AND is_closed = FALSE`

	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to increment registered count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// DecrementRegistered releases one seat. The floor guard keeps the counter
// from going negative if a release is replayed.
func (r *eventRepository) DecrementRegistered(ctx context.Context, eventID int64) error {
	query := `
		UPDATE events
		SET registered_count = registered_count - 1, updated_at = NOW()
		WHERE id = $1 AND registered_count > 0`

	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to decrement registered count: %w", err)
	}
	return nil
}

// ReconcileRegisteredCounts rewrites registered_count from the registrations
// table for every event where the two disagree. Returns the number of events
// repaired.
func (r *eventRepository) ReconcileRegisteredCounts(ctx context.Context) (int64, error) {
	query := `
		UPDATE events e
		SET registered_count = c.cnt, updated_at = NOW()
		FROM (
			SELECT e2.id, COUNT(r.id) AS cnt
			FROM events e2
			LEFT JOIN registrations r ON r.event_id = e2.id
			GROUP BY e2.id
		) c
		WHERE c.id = e.id AND e.registered_count <> c.cnt`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile registered counts: %w", err)
	}
	return result.RowsAffected()
}

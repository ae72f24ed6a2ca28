package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tulpar/internal/database"
	"tulpar/internal/models"
)

type userRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `user_id, email, password_hash, first_name, surname, registered_at, is_active`

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.UserID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.Surname, &user.RegisteredAt, &user.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.UserID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.Surname, &user.RegisteredAt, &user.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, surname)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, registered_at, is_active`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.Surname,
	).Scan(&user.UserID, &user.RegisteredAt, &user.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

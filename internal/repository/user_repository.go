package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inventoflow/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
)

const uniqueViolation = "23505"

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, name, confirmed,
	confirmation_code, confirmation_expires_at, confirmation_attempts,
	reset_code, reset_expires_at, reset_attempts,
	created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Confirmed,
		nullString(user.ConfirmationCode),
		user.ConfirmationExpiresAt,
		user.ConfirmationAttempts,
		nullString(user.ResetCode),
		user.ResetExpiresAt,
		user.ResetAttempts,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update persists the mutable fields: password, name, confirmation state,
// pending codes and their failed attempt counts.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET password_hash = $2, name = $3, confirmed = $4,
			confirmation_code = $5, confirmation_expires_at = $6, confirmation_attempts = $7,
			reset_code = $8, reset_expires_at = $9, reset_attempts = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.PasswordHash,
		user.Name,
		user.Confirmed,
		nullString(user.ConfirmationCode),
		user.ConfirmationExpiresAt,
		user.ConfirmationAttempts,
		nullString(user.ResetCode),
		user.ResetExpiresAt,
		user.ResetAttempts,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var confirmationCode, resetCode sql.NullString
	var confirmationExpires, resetExpires sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Confirmed,
		&confirmationCode,
		&confirmationExpires,
		&user.ConfirmationAttempts,
		&resetCode,
		&resetExpires,
		&user.ResetAttempts,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.ConfirmationCode = confirmationCode.String
	user.ResetCode = resetCode.String
	if confirmationExpires.Valid {
		user.ConfirmationExpiresAt = &confirmationExpires.Time
	}
	if resetExpires.Valid {
		user.ResetExpiresAt = &resetExpires.Time
	}
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wastealert/wastealert-server/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_approved, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsApproved, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a principal.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, is_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsApproved, u.CreatedAt)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail looks up a principal by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return u, nil
}

// UserByID looks up a principal by id.
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return u, nil
}

// ListUsers returns all principals newest-first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	return s.queryUsers(ctx, query)
}

// ListPendingDrivers returns unapproved driver accounts newest-first.
func (s *Store) ListPendingDrivers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE role = 'driver' AND is_approved = FALSE
		ORDER BY created_at DESC`
	return s.queryUsers(ctx, query)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ApproveDriver flips approval on the driver and their truck together.
func (s *Store) ApproveDriver(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var approved *models.User
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE users SET is_approved = TRUE
			WHERE id = $1 AND role = 'driver'
			RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("approve driver: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE trucks SET is_approved = TRUE WHERE driver_id = $1`, id); err != nil {
			return fmt.Errorf("approve truck: %w", err)
		}
		approved = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

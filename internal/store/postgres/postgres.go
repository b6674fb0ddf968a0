// Package postgres implements the store interfaces on PostgreSQL via pgx.
// Coupled report/truck transitions run as single transactions whose truck
// update is a conditional UPDATE on the busy flag, so concurrent assignments
// against one truck serialize on the row lock and at most one can win.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wastealert/wastealert-server/internal/models"
)

// Store is the pgx-backed persistence layer.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store on an existing pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// inTx runs fn inside a transaction, committing on nil error.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// uniqueViolation translates a 23505 error into the matching domain conflict
// based on the violated constraint name.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "license_plate"):
		return models.ErrDuplicatePlate
	case strings.Contains(pgErr.ConstraintName, "driver_id"):
		return models.ErrDriverAlreadyHasUnit
	default:
		return models.ErrDuplicateIdentity
	}
}

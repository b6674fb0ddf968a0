package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wastealert/wastealert-server/internal/models"
)

// AssignReport moves a Pending report to Assigned and claims the truck.
//
// The truck claim is a conditional UPDATE on (is_approved, is_busy): under
// concurrent assigns the row lock serializes the two transactions and the
// loser sees zero rows affected, which is then classified against the truck's
// state. Both writes commit together or not at all.
func (s *Store) AssignReport(ctx context.Context, reportID, truckID uuid.UUID, now time.Time) (*models.Report, error) {
	var assigned *models.Report
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var status models.ReportStatus
		err := tx.QueryRow(ctx,
			`SELECT status FROM reports WHERE id = $1 FOR UPDATE`, reportID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("select report for assign: %w", err)
		}
		if status != models.StatusPending {
			return models.ErrReportAlreadyAssigned
		}

		claim := `UPDATE trucks SET is_busy = TRUE
			WHERE id = $1 AND is_approved = TRUE AND is_busy = FALSE`
		tag, err := tx.Exec(ctx, claim, truckID)
		if err != nil {
			return fmt.Errorf("claim truck: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.classifyClaimFailure(ctx, tx, truckID)
		}

		update := `
			UPDATE reports
			SET status = 'Assigned', assigned_truck_id = $2, date_assigned = $3
			WHERE id = $1
			RETURNING ` + reportColumns
		r, err := scanReport(tx.QueryRow(ctx, update, reportID, truckID, now))
		if err != nil {
			return fmt.Errorf("assign report: %w", err)
		}
		assigned = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// classifyClaimFailure decides why the truck claim affected no rows.
func (s *Store) classifyClaimFailure(ctx context.Context, tx pgx.Tx, truckID uuid.UUID) error {
	var approved, busy bool
	err := tx.QueryRow(ctx,
		`SELECT is_approved, is_busy FROM trucks WHERE id = $1`, truckID).Scan(&approved, &busy)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrTruckNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect truck: %w", err)
	}
	if !approved {
		return models.ErrTruckNotApproved
	}
	return models.ErrTruckBusy
}

// UnassignReport reverts an Assigned report to Pending and frees its truck.
func (s *Store) UnassignReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	var released *models.Report
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var status models.ReportStatus
		var truckID *uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, assigned_truck_id FROM reports WHERE id = $1 FOR UPDATE`, reportID).
			Scan(&status, &truckID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("select report for unassign: %w", err)
		}
		if truckID == nil {
			return models.ErrNotAssigned
		}
		if status != models.StatusAssigned {
			return models.ErrInvalidTransition
		}

		if _, err := tx.Exec(ctx,
			`UPDATE trucks SET is_busy = FALSE WHERE id = $1`, *truckID); err != nil {
			return fmt.Errorf("free truck: %w", err)
		}
		update := `
			UPDATE reports
			SET status = 'Pending', assigned_truck_id = NULL, date_assigned = NULL
			WHERE id = $1
			RETURNING ` + reportColumns
		r, err := scanReport(tx.QueryRow(ctx, update, reportID))
		if err != nil {
			return fmt.Errorf("unassign report: %w", err)
		}
		released = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// MarkInProgress moves an Assigned report to In-Progress. Both the status
// guard and the owning-truck predicate are in the WHERE clause, so neither a
// concurrent unassign nor a reassignment to another truck can race past them.
func (s *Store) MarkInProgress(ctx context.Context, reportID, truckID uuid.UUID) (*models.Report, error) {
	query := `
		UPDATE reports SET status = 'In-Progress'
		WHERE id = $1 AND status = 'Assigned' AND assigned_truck_id = $2
		RETURNING ` + reportColumns
	r, err := scanReport(s.db.QueryRow(ctx, query, reportID, truckID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classifyPickupFailure(ctx, reportID, truckID)
	}
	if err != nil {
		return nil, fmt.Errorf("mark in-progress: %w", err)
	}
	return r, nil
}

// classifyPickupFailure decides why the pickup update affected no rows.
func (s *Store) classifyPickupFailure(ctx context.Context, reportID, truckID uuid.UUID) error {
	var status models.ReportStatus
	var assigned *uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT status, assigned_truck_id FROM reports WHERE id = $1`, reportID).
		Scan(&status, &assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect report: %w", err)
	}
	if status != models.StatusAssigned {
		return models.ErrInvalidTransition
	}
	if assigned == nil || *assigned != truckID {
		return models.ErrForbidden
	}
	return models.ErrInvalidTransition
}

func (s *Store) classifyStatusFailure(ctx context.Context, reportID uuid.UUID) error {
	var status models.ReportStatus
	err := s.db.QueryRow(ctx,
		`SELECT status FROM reports WHERE id = $1`, reportID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect report: %w", err)
	}
	return models.ErrInvalidTransition
}

// ClearReport moves an In-Progress report to Cleared, records the disposal
// proof and frees the truck. The release rides in the same transaction as the
// status change; a crash between the two writes can never strand a busy truck.
func (s *Store) ClearReport(ctx context.Context, reportID uuid.UUID, proofURL, notes string, now time.Time) (*models.Report, error) {
	var cleared *models.Report
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		update := `
			UPDATE reports
			SET status = 'Cleared', date_cleared = $2, proof_image_url = $3, proof_notes = $4
			WHERE id = $1 AND status = 'In-Progress'
			RETURNING ` + reportColumns
		r, err := scanReport(tx.QueryRow(ctx, update, reportID, now, proofURL, notes))
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyStatusFailure(ctx, reportID)
		}
		if err != nil {
			return fmt.Errorf("clear report: %w", err)
		}

		if r.AssignedTruckID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE trucks SET is_busy = FALSE WHERE id = $1`, *r.AssignedTruckID); err != nil {
				return fmt.Errorf("free truck: %w", err)
			}
		}
		cleared = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cleared, nil
}

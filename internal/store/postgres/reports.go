package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wastealert/wastealert-server/internal/models"
)

const reportColumns = `id, reporter_phone, description, location_name, location_state, location_city,
	image_url, status, assigned_truck_id, date_assigned, date_cleared, proof_image_url, proof_notes, date_reported`

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.ReporterPhone, &r.Description,
		&r.Location.Name, &r.Location.State, &r.Location.City,
		&r.ImageURL, &r.Status, &r.AssignedTruckID, &r.DateAssigned,
		&r.DateCleared, &r.ProofImageURL, &r.ProofNotes, &r.DateReported)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport inserts a new report.
func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (id, reporter_phone, description, location_name, location_state, location_city,
			image_url, status, date_reported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.Exec(ctx, query,
		r.ID, r.ReporterPhone, r.Description,
		r.Location.Name, r.Location.State, r.Location.City,
		r.ImageURL, r.Status, r.DateReported)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ReportByID looks up a report.
func (s *Store) ReportByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReport(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	return r, nil
}

// ListReports returns reports newest-first, optionally filtered by status.
func (s *Store) ListReports(ctx context.Context, status *models.ReportStatus) ([]models.Report, error) {
	if status != nil {
		query := `SELECT ` + reportColumns + ` FROM reports WHERE status = $1 ORDER BY date_reported DESC`
		return s.queryReports(ctx, query, *status)
	}
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY date_reported DESC`
	return s.queryReports(ctx, query)
}

// ActiveReportsByTruck returns the truck's Assigned and In-Progress reports.
func (s *Store) ActiveReportsByTruck(ctx context.Context, truckID uuid.UUID) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE assigned_truck_id = $1 AND status IN ('Assigned', 'In-Progress')
		ORDER BY date_reported DESC`
	return s.queryReports(ctx, query, truckID)
}

func (s *Store) queryReports(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report, freeing its truck in the same transaction if
// the report was actively assigned. Without the coupled release a deleted
// report would strand its truck busy forever.
func (s *Store) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var status models.ReportStatus
		var truckID *uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, assigned_truck_id FROM reports WHERE id = $1 FOR UPDATE`, id).
			Scan(&status, &truckID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("select report for delete: %w", err)
		}

		if status.Active() && truckID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE trucks SET is_busy = FALSE WHERE id = $1`, *truckID); err != nil {
				return fmt.Errorf("release truck: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
		return nil
	})
}

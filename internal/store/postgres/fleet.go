package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wastealert/wastealert-server/internal/models"
)

const truckColumns = `id, license_plate, driver_id, driver_name, capacity_tons, is_approved, is_busy, created_at`

func scanTruck(row pgx.Row) (*models.Truck, error) {
	var t models.Truck
	err := row.Scan(&t.ID, &t.LicensePlate, &t.DriverID, &t.DriverName,
		&t.CapacityTons, &t.IsApproved, &t.IsBusy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateDriverWithTruck inserts the driver account and its truck in one
// transaction, so a failed truck insert never leaves a dangling account.
func (s *Store) CreateDriverWithTruck(ctx context.Context, u *models.User, t *models.Truck) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		userQuery := `
			INSERT INTO users (id, username, email, password_hash, role, is_approved, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.Exec(ctx, userQuery,
			u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsApproved, u.CreatedAt); err != nil {
			if dup := uniqueViolation(err); dup != nil {
				return dup
			}
			return fmt.Errorf("insert driver: %w", err)
		}

		truckQuery := `
			INSERT INTO trucks (id, license_plate, driver_id, driver_name, capacity_tons, is_approved, is_busy, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, truckQuery,
			t.ID, t.LicensePlate, t.DriverID, t.DriverName,
			t.CapacityTons, t.IsApproved, t.IsBusy, t.CreatedAt); err != nil {
			if dup := uniqueViolation(err); dup != nil {
				return dup
			}
			return fmt.Errorf("insert truck: %w", err)
		}
		return nil
	})
}

// TruckByID looks up a truck.
func (s *Store) TruckByID(ctx context.Context, id uuid.UUID) (*models.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks WHERE id = $1`
	t, err := scanTruck(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTruckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select truck: %w", err)
	}
	return t, nil
}

// TruckByDriver looks up the truck owned by a driver.
func (s *Store) TruckByDriver(ctx context.Context, driverID uuid.UUID) (*models.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks WHERE driver_id = $1`
	t, err := scanTruck(s.db.QueryRow(ctx, query, driverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTruckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select truck by driver: %w", err)
	}
	return t, nil
}

// ListTrucks returns the whole fleet newest-first.
func (s *Store) ListTrucks(ctx context.Context) ([]models.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks ORDER BY created_at DESC`
	return s.queryTrucks(ctx, query)
}

// ListAvailableTrucks returns approved trucks that are not busy.
func (s *Store) ListAvailableTrucks(ctx context.Context) ([]models.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks
		WHERE is_approved = TRUE AND is_busy = FALSE
		ORDER BY created_at DESC`
	return s.queryTrucks(ctx, query)
}

func (s *Store) queryTrucks(ctx context.Context, query string, args ...any) ([]models.Truck, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select trucks: %w", err)
	}
	defer rows.Close()

	var trucks []models.Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan truck: %w", err)
		}
		trucks = append(trucks, *t)
	}
	return trucks, rows.Err()
}

// UpdateTruck applies an admin edit of plate and capacity.
func (s *Store) UpdateTruck(ctx context.Context, id uuid.UUID, patch models.TruckPatch) (*models.Truck, error) {
	query := `
		UPDATE trucks
		SET license_plate = COALESCE($2, license_plate),
		    capacity_tons = COALESCE($3, capacity_tons)
		WHERE id = $1
		RETURNING ` + truckColumns
	t, err := scanTruck(s.db.QueryRow(ctx, query, id, patch.LicensePlate, patch.CapacityTons))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTruckNotFound
	}
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update truck: %w", err)
	}
	return t, nil
}

// DeleteTruck removes the truck and the owning driver account. Any actively
// assigned report reverts to Pending in the same transaction so no report is
// left pointing at a vanished truck mid-workflow.
func (s *Store) DeleteTruck(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var driverID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT driver_id FROM trucks WHERE id = $1 FOR UPDATE`, id).Scan(&driverID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrTruckNotFound
		}
		if err != nil {
			return fmt.Errorf("select truck for delete: %w", err)
		}

		release := `
			UPDATE reports
			SET status = 'Pending', assigned_truck_id = NULL, date_assigned = NULL
			WHERE assigned_truck_id = $1 AND status IN ('Assigned', 'In-Progress')
		`
		if _, err := tx.Exec(ctx, release, id); err != nil {
			return fmt.Errorf("release reports: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM trucks WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete truck: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, driverID); err != nil {
			return fmt.Errorf("delete driver: %w", err)
		}
		return nil
	})
}

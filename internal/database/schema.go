package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so redeploys are
// safe against an existing database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'driver')),
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trucks (
		id UUID PRIMARY KEY,
		license_plate TEXT NOT NULL UNIQUE,
		driver_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		driver_name TEXT NOT NULL,
		capacity_tons DOUBLE PRECISION NOT NULL CHECK (capacity_tons > 0),
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		is_busy BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY,
		reporter_phone TEXT NOT NULL,
		description TEXT NOT NULL,
		location_name TEXT NOT NULL,
		location_state TEXT NOT NULL,
		location_city TEXT NOT NULL,
		image_url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending'
			CHECK (status IN ('Pending', 'Assigned', 'In-Progress', 'Cleared')),
		assigned_truck_id UUID REFERENCES trucks(id) ON DELETE SET NULL,
		date_assigned TIMESTAMPTZ,
		date_cleared TIMESTAMPTZ,
		proof_image_url TEXT,
		proof_notes TEXT,
		date_reported TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports (status)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_active_truck ON reports (assigned_truck_id)
		WHERE status IN ('Assigned', 'In-Progress')`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		actor_id UUID NOT NULL,
		action TEXT NOT NULL,
		report_id UUID,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log (created_at DESC)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

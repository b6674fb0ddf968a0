// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema and to the JSON representations on the
// wire; external status strings are translated into the ReportStatus enum at
// the boundary and never carried around raw.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportStatus is the workflow state of a waste report.
//
//	Pending --assign--> Assigned --confirm pickup--> In-Progress --clear--> Cleared
//	Assigned --unassign--> Pending
//
// Cleared is terminal.
type ReportStatus string

const (
	StatusPending    ReportStatus = "Pending"
	StatusAssigned   ReportStatus = "Assigned"
	StatusInProgress ReportStatus = "In-Progress"
	StatusCleared    ReportStatus = "Cleared"
)

// ParseReportStatus normalizes an external status string. It tolerates the
// "In Progress" spelling and case differences seen in older clients.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "assigned":
		return StatusAssigned, nil
	case "in-progress", "in progress", "inprogress":
		return StatusInProgress, nil
	case "cleared":
		return StatusCleared, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}

// CanTransitionTo reports whether moving from s to next is a legal workflow
// step. Cleared has no outgoing transitions.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAssigned
	case StatusAssigned:
		return next == StatusInProgress || next == StatusPending
	case StatusInProgress:
		return next == StatusCleared
	}
	return false
}

// Active reports whether the status ties up a truck.
func (s ReportStatus) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Role of an authenticated principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// Location is the human-entered place description of a waste pile. No
// geocoordinates are collected.
type Location struct {
	Name  string `json:"name"`
	State string `json:"state"`
	City  string `json:"city"`
}

// Report is a citizen-submitted waste-pile report and its workflow state.
//
// Invariants maintained by the stores:
//   - AssignedTruckID is non-nil iff Status is Assigned, In-Progress or
//     Cleared (retained as history after clearance; nulled only by unassign).
//   - DateCleared is non-nil iff Status is Cleared.
type Report struct {
	ID              uuid.UUID    `json:"id"`
	ReporterPhone   string       `json:"reporter_phone"`
	Description     string       `json:"description"`
	Location        Location     `json:"location"`
	ImageURL        string       `json:"image_url"`
	Status          ReportStatus `json:"status"`
	AssignedTruckID *uuid.UUID   `json:"assigned_truck_id,omitempty"`
	DateAssigned    *time.Time   `json:"date_assigned,omitempty"`
	DateCleared     *time.Time   `json:"date_cleared,omitempty"`
	ProofImageURL   *string      `json:"proof_image_url,omitempty"`
	ProofNotes      *string      `json:"proof_notes,omitempty"`
	DateReported    time.Time    `json:"date_reported"`
}

// Truck is a fleet unit owned by exactly one driver account. IsBusy is true
// while the truck is servicing exactly one active report.
type Truck struct {
	ID           uuid.UUID `json:"id"`
	LicensePlate string    `json:"license_plate"`
	DriverID     uuid.UUID `json:"driver_id"`
	DriverName   string    `json:"driver_name"`
	CapacityTons float64   `json:"capacity_tons"`
	IsApproved   bool      `json:"is_approved"`
	IsBusy       bool      `json:"is_busy"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is an authenticated principal. The password is stored only as a
// bcrypt hash and never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry records one workflow action for accountability.
type AuditEntry struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   uuid.UUID  `json:"actor_id"`
	Action    string     `json:"action"`
	ReportID  *uuid.UUID `json:"report_id,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ReportSubmission is the citizen-facing payload for filing a report. The
// image URL is filled in server-side after the upload is stored.
type ReportSubmission struct {
	ReporterPhone string `json:"reporter_phone"`
	Description   string `json:"description"`
	LocationName  string `json:"location_name"`
	LocationState string `json:"location_state"`
	LocationCity  string `json:"location_city"`
	ImageURL      string `json:"image_url"`
}

// ClearanceSubmission is the driver's disposal proof.
type ClearanceSubmission struct {
	ProofImageURL string `json:"proof_image_url"`
	ProofNotes    string `json:"proof_notes"`
}

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminRegistration creates an admin account.
type AdminRegistration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DriverRegistration creates a driver account together with its truck.
type DriverRegistration struct {
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	LicensePlate string  `json:"license_plate"`
	CapacityTons float64 `json:"capacity_tons"`
}

// TruckPatch is an admin edit of truck details. Nil fields are left
// untouched; approval and busy state are not patchable here.
type TruckPatch struct {
	LicensePlate *string  `json:"license_plate,omitempty"`
	CapacityTons *float64 `json:"capacity_tons,omitempty"`
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime,omitempty"`
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

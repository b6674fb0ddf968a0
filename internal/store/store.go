// Package store defines the persistence interfaces the services operate on.
// Two implementations exist: store/postgres for production and store/memory
// for tests. Both honor the same contracts, in particular the atomicity of
// the coupled report/truck transitions: each Workflow operation commits every
// write it describes or none of them.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wastealert/wastealert-server/internal/models"
)

// Users persists principals.
type Users interface {
	// CreateUser fails with models.ErrDuplicateIdentity if the username or
	// email is taken.
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListPendingDrivers(ctx context.Context) ([]models.User, error)
	// ApproveDriver flips the driver's approval flag and the approval flag of
	// the driver's truck in one step. Idempotent.
	ApproveDriver(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Fleet persists trucks and their driver association.
type Fleet interface {
	// CreateDriverWithTruck inserts the driver account and its truck
	// atomically: either both exist afterwards or neither does.
	CreateDriverWithTruck(ctx context.Context, u *models.User, t *models.Truck) error
	TruckByID(ctx context.Context, id uuid.UUID) (*models.Truck, error)
	// TruckByDriver fails with models.ErrTruckNotFound if the driver owns no
	// truck.
	TruckByDriver(ctx context.Context, driverID uuid.UUID) (*models.Truck, error)
	ListTrucks(ctx context.Context) ([]models.Truck, error)
	// ListAvailableTrucks returns approved, not-busy trucks. Advisory only;
	// assignment re-validates under its own transaction.
	ListAvailableTrucks(ctx context.Context) ([]models.Truck, error)
	UpdateTruck(ctx context.Context, id uuid.UUID, patch models.TruckPatch) (*models.Truck, error)
	// DeleteTruck removes the truck and the owning driver account. Any report
	// the truck was actively assigned to reverts to Pending first.
	DeleteTruck(ctx context.Context, id uuid.UUID) error
}

// Reports persists incident reports.
type Reports interface {
	CreateReport(ctx context.Context, r *models.Report) error
	ReportByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// ListReports returns reports newest-first, optionally filtered by status.
	ListReports(ctx context.Context, status *models.ReportStatus) ([]models.Report, error)
	// ActiveReportsByTruck returns the truck's Assigned and In-Progress
	// reports, newest-first.
	ActiveReportsByTruck(ctx context.Context, truckID uuid.UUID) ([]models.Report, error)
	// DeleteReport removes the report, releasing its truck (busy=false) in
	// the same step if the report was actively assigned.
	DeleteReport(ctx context.Context, id uuid.UUID) error
}

// Workflow holds the coupled report/truck transitions. Implementations must
// adjudicate concurrent calls: of two assigns racing for the same truck,
// exactly one wins and the other fails with models.ErrTruckBusy.
type Workflow interface {
	// AssignReport moves a Pending report to Assigned and marks the truck
	// busy. Fails with ErrReportNotFound, ErrReportAlreadyAssigned (status is
	// not Pending), ErrTruckNotFound, ErrTruckNotApproved or ErrTruckBusy.
	AssignReport(ctx context.Context, reportID, truckID uuid.UUID, now time.Time) (*models.Report, error)
	// UnassignReport moves an Assigned report back to Pending and frees the
	// truck. Fails with ErrReportNotFound, ErrNotAssigned, or
	// ErrInvalidTransition if the report is In-Progress or Cleared.
	UnassignReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	// MarkInProgress moves Assigned to In-Progress, but only while the report
	// is still assigned to truckID: the ownership predicate rides in the same
	// guarded update as the status check, so a reassignment racing with the
	// pickup cannot slip between them. Fails with ErrReportNotFound,
	// ErrInvalidTransition, or ErrForbidden if another truck holds the report.
	MarkInProgress(ctx context.Context, reportID, truckID uuid.UUID) (*models.Report, error)
	// ClearReport moves In-Progress to Cleared, records the disposal proof
	// and frees the truck, all in one step. Fails with ErrReportNotFound or
	// ErrInvalidTransition.
	ClearReport(ctx context.Context, reportID uuid.UUID, proofURL, notes string, now time.Time) (*models.Report, error)
}

// Audit appends and lists workflow audit entries.
type Audit interface {
	AppendAudit(ctx context.Context, e *models.AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Store is the full persistence surface the server wires up.
type Store interface {
	Users
	Fleet
	Reports
	Workflow
	Audit
}

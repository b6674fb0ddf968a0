package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/store"
)

// AssignmentService is the one place allowed to move reports through the
// workflow and to flip truck busy flags. Every coupled transition is a single
// atomic store operation; a failed call leaves both resources unchanged and
// is safe to retry.
type AssignmentService struct {
	workflow store.Workflow
	reports  store.Reports
	fleet    store.Fleet
	audit    *AuditService
	cache    *cache.Cache
	logger   *zap.SugaredLogger
}

// NewAssignmentService creates the assignment engine.
func NewAssignmentService(st store.Store, audit *AuditService, c *cache.Cache, logger *zap.SugaredLogger) *AssignmentService {
	return &AssignmentService{
		workflow: st,
		reports:  st,
		fleet:    st,
		audit:    audit,
		cache:    c,
		logger:   logger,
	}
}

func (s *AssignmentService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyReports, cacheKeyTrucks, cacheKeyTrucksAvailable)
}

// Assign couples a Pending report to an approved, available truck. Of two
// admins racing to assign the same truck, exactly one wins; the other gets
// ErrTruckBusy.
func (s *AssignmentService) Assign(ctx context.Context, reportID, truckID, actorID uuid.UUID) (*models.Report, error) {
	report, err := s.workflow.AssignReport(ctx, reportID, truckID, time.Now())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.audit.Record(ctx, actorID, "report.assign", &reportID, "truck "+truckID.String())
	s.logger.Infow("Report assigned", "report_id", reportID, "truck_id", truckID, "by", actorID)
	return report, nil
}

// Unassign reverts an Assigned report to Pending and frees its truck.
func (s *AssignmentService) Unassign(ctx context.Context, reportID, actorID uuid.UUID) (*models.Report, error) {
	report, err := s.workflow.UnassignReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.audit.Record(ctx, actorID, "report.unassign", &reportID, "")
	s.logger.Infow("Report unassigned", "report_id", reportID, "by", actorID)
	return report, nil
}

// ConfirmPickup moves an Assigned report to In-Progress on behalf of the
// driver whose truck it is assigned to. The truck id travels into the store's
// guarded update, which re-checks ownership, so a reassignment interleaved
// after the authorization check still fails the pickup.
func (s *AssignmentService) ConfirmPickup(ctx context.Context, reportID, driverID uuid.UUID) (*models.Report, error) {
	truck, err := s.authorizeDriver(ctx, reportID, driverID)
	if err != nil {
		return nil, err
	}
	report, err := s.workflow.MarkInProgress(ctx, reportID, truck.ID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.audit.Record(ctx, driverID, "report.confirm_pickup", &reportID, "")
	s.logger.Infow("Pickup confirmed", "report_id", reportID, "driver_id", driverID)
	return report, nil
}

// SubmitClearance moves an In-Progress report to Cleared with the driver's
// disposal proof, freeing the truck in the same atomic step.
func (s *AssignmentService) SubmitClearance(ctx context.Context, reportID, driverID uuid.UUID, proofURL, notes string) (*models.Report, error) {
	if _, err := s.authorizeDriver(ctx, reportID, driverID); err != nil {
		return nil, err
	}
	report, err := s.workflow.ClearReport(ctx, reportID, proofURL, notes, time.Now())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.audit.Record(ctx, driverID, "report.clear", &reportID, "")
	s.logger.Infow("Report cleared", "report_id", reportID, "driver_id", driverID)
	return report, nil
}

// Delete is the admin override: the truck is released regardless of current
// status before the report is removed.
func (s *AssignmentService) Delete(ctx context.Context, reportID, actorID uuid.UUID) error {
	if err := s.reports.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.audit.Record(ctx, actorID, "report.delete", &reportID, "")
	s.logger.Infow("Report deleted", "report_id", reportID, "by", actorID)
	return nil
}

// authorizeDriver checks that the report is assigned to the driver's truck
// and returns that truck. A report with no truck attached cannot be in a
// driver-actionable state, so that reads as an illegal transition rather than
// an ownership failure.
func (s *AssignmentService) authorizeDriver(ctx context.Context, reportID, driverID uuid.UUID) (*models.Truck, error) {
	report, err := s.reports.ReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.AssignedTruckID == nil {
		return nil, models.ErrInvalidTransition
	}
	truck, err := s.fleet.TruckByDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, models.ErrTruckNotFound) {
			return nil, models.ErrForbidden
		}
		return nil, err
	}
	if *report.AssignedTruckID != truck.ID {
		return nil, models.ErrForbidden
	}
	return truck, nil
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/store"
)

const cacheKeyReports = "wastealert:reports:all"

// ReportService handles citizen submissions and report reads. All status and
// assignment mutations go through the AssignmentService; nothing here ever
// writes those fields after creation.
type ReportService struct {
	reports store.Reports
	cache   *cache.Cache
	logger  *zap.SugaredLogger
}

// NewReportService creates a report service.
func NewReportService(reports store.Reports, c *cache.Cache, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{reports: reports, cache: c, logger: logger}
}

// Submit files a citizen report. Status is forced to Pending and the
// creation timestamp is set server-side regardless of client input.
func (s *ReportService) Submit(ctx context.Context, sub *models.ReportSubmission) (*models.Report, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	report := &models.Report{
		ID:            uuid.New(),
		ReporterPhone: strings.TrimSpace(sub.ReporterPhone),
		Description:   strings.TrimSpace(sub.Description),
		Location: models.Location{
			Name:  strings.TrimSpace(sub.LocationName),
			State: strings.TrimSpace(sub.LocationState),
			City:  strings.TrimSpace(sub.LocationCity),
		},
		ImageURL:     sub.ImageURL,
		Status:       models.StatusPending,
		DateReported: time.Now(),
	}
	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheKeyReports)
	s.logger.Infow("Report submitted",
		"report_id", report.ID, "city", report.Location.City, "state", report.Location.State)
	return report, nil
}

// Get fetches one report.
func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	return s.reports.ReportByID(ctx, id)
}

// List returns reports newest-first. The unfiltered listing is served from
// cache when warm; filtered listings always hit the store.
func (s *ReportService) List(ctx context.Context, status *models.ReportStatus) ([]models.Report, error) {
	if status == nil {
		var reports []models.Report
		if s.cache.GetJSON(ctx, cacheKeyReports, &reports) {
			return reports, nil
		}
		reports, err := s.reports.ListReports(ctx, nil)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, cacheKeyReports, reports)
		return reports, nil
	}
	return s.reports.ListReports(ctx, status)
}

// ActiveForTruck returns the truck's Assigned and In-Progress reports for
// the driver dashboard.
func (s *ReportService) ActiveForTruck(ctx context.Context, truckID uuid.UUID) ([]models.Report, error) {
	return s.reports.ActiveReportsByTruck(ctx, truckID)
}

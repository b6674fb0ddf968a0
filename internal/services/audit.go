package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/store"
)

// AuditService records workflow actions for accountability. Recording is
// best-effort: a failed append is logged but never fails the action itself.
type AuditService struct {
	audit  store.Audit
	logger *zap.SugaredLogger
}

// NewAuditService creates an audit service.
func NewAuditService(audit store.Audit, logger *zap.SugaredLogger) *AuditService {
	return &AuditService{audit: audit, logger: logger}
}

// Record appends one audit entry.
func (s *AuditService) Record(ctx context.Context, actorID uuid.UUID, action string, reportID *uuid.UUID, detail string) {
	entry := &models.AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		ReportID:  reportID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.logger.Errorw("Audit append failed", "action", action, "actor", actorID, "error", err)
	}
}

// Recent returns the latest audit entries, newest-first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.RecentAudit(ctx, limit)
}

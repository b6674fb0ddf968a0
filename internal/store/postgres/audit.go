package postgres

import (
	"context"
	"fmt"

	"github.com/wastealert/wastealert-server/internal/models"
)

// AppendAudit records one workflow action.
func (s *Store) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, actor_id, action, report_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		e.ID, e.ActorID, e.Action, e.ReportID, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns the most recent workflow actions, newest-first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, report_id, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ReportID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/services"
)

// AuditHandler exposes the workflow audit trail to admins.
type AuditHandler struct {
	audit  *services.AuditService
	logger *zap.SugaredLogger
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(audit *services.AuditService, logger *zap.SugaredLogger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// Recent handles GET /api/v1/audit/recent.
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, entries)
}

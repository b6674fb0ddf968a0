package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/models"
)

const version = "1.0.0"

var startTime = time.Now()

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db     *pgxpool.Pool
	cache  *cache.Cache
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *pgxpool.Pool, c *cache.Cache, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, cache: c, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe).
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
		Cache:    "disabled",
	}
	if h.cache.Enabled() {
		status.Cache = "connected"
		if err := h.cache.Ping(r.Context()); err != nil {
			status.Cache = "disconnected"
		}
	}

	if err := h.db.Ping(r.Context()); err != nil {
		status.Status = "not ready"
		status.Database = "disconnected"
		respondData(w, http.StatusServiceUnavailable, status)
		return
	}
	respondData(w, http.StatusOK, status)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/middleware"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/services"
)

// FleetHandler handles the admin fleet-management endpoints.
type FleetHandler struct {
	fleet  *services.FleetService
	creds  *services.CredentialService
	logger *zap.SugaredLogger
}

// NewFleetHandler creates a fleet handler.
func NewFleetHandler(fleet *services.FleetService, creds *services.CredentialService, logger *zap.SugaredLogger) *FleetHandler {
	return &FleetHandler{fleet: fleet, creds: creds, logger: logger}
}

// ListTrucks handles GET /api/v1/trucks.
func (h *FleetHandler) ListTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := h.fleet.Trucks(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, trucks)
}

// AvailableTrucks handles GET /api/v1/trucks/available for the assignment
// dropdown.
func (h *FleetHandler) AvailableTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := h.fleet.AvailableTrucks(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, trucks)
}

// UpdateTruck handles PUT /api/v1/trucks/{id}.
func (h *FleetHandler) UpdateTruck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.TruckPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	truck, err := h.fleet.Update(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, truck)
}

// DeleteTruck handles DELETE /api/v1/trucks/{id}: rejects the truck and
// removes the owning driver account.
func (h *FleetHandler) DeleteTruck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin := middleware.Principal(r)
	if err := h.fleet.Delete(r.Context(), id, admin.ID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "Truck and driver account removed"})
}

// ListUsers handles GET /api/v1/users.
func (h *FleetHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.creds.Users(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

// PendingDrivers handles GET /api/v1/users/drivers/pending.
func (h *FleetHandler) PendingDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.creds.PendingDrivers(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, drivers)
}

// ApproveDriver handles PATCH /api/v1/users/{id}/approve.
func (h *FleetHandler) ApproveDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin := middleware.Principal(r)
	user, err := h.fleet.Approve(r.Context(), id, admin.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

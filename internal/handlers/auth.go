package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/middleware"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/services"
)

// AuthHandler handles admin and driver credential endpoints.
type AuthHandler struct {
	creds  *services.CredentialService
	fleet  *services.FleetService
	logger *zap.SugaredLogger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(creds *services.CredentialService, fleet *services.FleetService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{creds: creds, fleet: fleet, logger: logger}
}

// AdminRegister handles POST /api/v1/auth/register.
func (h *AuthHandler) AdminRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.AdminRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.creds.RegisterAdmin(r.Context(), &reg)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, user)
}

// AdminLogin handles POST /api/v1/auth/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.RoleAdmin)
}

// DriverLogin handles POST /api/v1/drivers/auth/login. An unapproved driver
// gets a pending-approval rejection, never a token.
func (h *AuthHandler) DriverLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.RoleDriver)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, role models.Role) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.creds.Authenticate(r.Context(), &creds, role)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	payload := map[string]any{"token": token, "user": user}
	if role == models.RoleDriver {
		if truck, err := h.fleet.TruckByDriver(r.Context(), user.ID); err == nil {
			payload["truck"] = truck
		}
	}
	respondData(w, http.StatusOK, payload)
}

// DriverRegister handles POST /api/v1/drivers/auth/register: the driver
// account and its truck are created together, pending admin approval.
func (h *AuthHandler) DriverRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.DriverRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, truck, err := h.fleet.RegisterDriver(r.Context(), &reg)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, map[string]any{
		"user":    user,
		"truck":   truck,
		"message": "Registration received. Your truck is pending review and approval.",
	})
}

// DriverProfile handles GET /api/v1/drivers/auth/profile. The truck is nil
// until registration is complete, which the dashboard uses to pick its UI
// state.
func (h *AuthHandler) DriverProfile(w http.ResponseWriter, r *http.Request) {
	driver := middleware.Principal(r)

	payload := map[string]any{"user": driver, "truck": nil}
	truck, err := h.fleet.TruckByDriver(r.Context(), driver.ID)
	if err == nil {
		payload["truck"] = truck
	} else if !errors.Is(err, models.ErrTruckNotFound) {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, payload)
}

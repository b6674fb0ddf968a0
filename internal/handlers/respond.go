// Package handlers contains the HTTP request handlers for the WasteAlert
// API. Handlers parse requests, call services, and return the JSON envelope
// {success, data|error}. All service errors are mapped onto the error
// taxonomy here; raw storage error text never reaches clients.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/models"
)

func respondData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// respondServiceError maps a service error to its HTTP status. Anything
// outside the taxonomy is logged and reported as a generic internal error.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidToken),
		errors.Is(err, models.ErrPrincipalGone):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrPendingApproval),
		errors.Is(err, models.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrReportNotFound),
		errors.Is(err, models.ErrTruckNotFound),
		errors.Is(err, models.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDuplicateIdentity),
		errors.Is(err, models.ErrDuplicatePlate),
		errors.Is(err, models.ErrDriverAlreadyHasUnit),
		errors.Is(err, models.ErrTruckBusy),
		errors.Is(err, models.ErrReportAlreadyAssigned),
		errors.Is(err, models.ErrTruckNotApproved),
		errors.Is(err, models.ErrNotAssigned),
		errors.Is(err, models.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Errorw("Internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

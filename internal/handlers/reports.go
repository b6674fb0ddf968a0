package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/middleware"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/services"
	"github.com/wastealert/wastealert-server/internal/storage"
)

const maxUploadBytes = 10 << 20

// ReportHandler handles citizen submissions, admin triage and the driver
// workflow endpoints.
type ReportHandler struct {
	reports *services.ReportService
	engine  *services.AssignmentService
	uploads storage.ObjectStore
	logger  *zap.SugaredLogger
}

// NewReportHandler creates a report handler.
func NewReportHandler(rs *services.ReportService, engine *services.AssignmentService, uploads storage.ObjectStore, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: rs, engine: engine, uploads: uploads, logger: logger}
}

// Submit handles POST /api/v1/reports. Citizens send a multipart form with
// the report fields plus an `image` file; JSON with a pre-uploaded image_url
// is also accepted.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub models.ReportSubmission

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		sub = models.ReportSubmission{
			ReporterPhone: r.FormValue("reporter_phone"),
			Description:   r.FormValue("description"),
			LocationName:  r.FormValue("location_name"),
			LocationState: r.FormValue("location_state"),
			LocationCity:  r.FormValue("location_city"),
		}
		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			url, err := h.uploads.Put(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
			if err != nil {
				h.logger.Errorw("Proof image upload failed", "error", err)
				respondError(w, http.StatusInternalServerError, "Could not store the uploaded image")
				return
			}
			sub.ImageURL = url
		}
		// A missing file is reported by Validate alongside any other
		// field errors.
	} else {
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	report, err := h.reports.Submit(r.Context(), &sub)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, report)
}

// List handles GET /api/v1/reports (admin). An optional ?status= filter is
// normalized before use.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter *models.ReportStatus
	if raw := r.URL.Query().Get("status"); raw != "" && raw != "all" {
		status, err := models.ParseReportStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Unknown status filter")
			return
		}
		filter = &status
	}

	reports, err := h.reports.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, reports)
}

// Get handles GET /api/v1/reports/{id} (admin).
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// Assign handles PUT /api/v1/reports/{id}/assign (admin).
func (h *ReportHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		TruckID uuid.UUID `json:"truck_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TruckID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "truck_id is required")
		return
	}

	admin := middleware.Principal(r)
	report, err := h.engine.Assign(r.Context(), id, body.TruckID, admin.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// Unassign handles PUT /api/v1/reports/{id}/unassign (admin).
func (h *ReportHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin := middleware.Principal(r)
	report, err := h.engine.Unassign(r.Context(), id, admin.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// Delete handles DELETE /api/v1/reports/{id} (admin). The assigned truck, if
// any, is released as part of the delete.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin := middleware.Principal(r)
	if err := h.engine.Delete(r.Context(), id, admin.ID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "Report deleted"})
}

// Assigned handles GET /api/v1/reports/driver/assigned (driver): the active
// reports for this driver's truck.
func (h *ReportHandler) Assigned(w http.ResponseWriter, r *http.Request) {
	truck := middleware.Truck(r)
	if truck == nil {
		respondData(w, http.StatusOK, []models.Report{})
		return
	}
	reports, err := h.reports.ActiveForTruck(r.Context(), truck.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, reports)
}

// ConfirmPickup handles PATCH /api/v1/reports/{id}/confirm-pickup (driver).
func (h *ReportHandler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	driver := middleware.Principal(r)
	report, err := h.engine.ConfirmPickup(r.Context(), id, driver.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// Clear handles POST /api/v1/reports/{id}/clear (driver). Multipart with a
// `proof_image` file and `proof_notes`, or JSON with a pre-uploaded URL.
func (h *ReportHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var clearance models.ClearanceSubmission
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		clearance.ProofNotes = r.FormValue("proof_notes")
		file, header, err := r.FormFile("proof_image")
		if err == nil {
			defer file.Close()
			url, err := h.uploads.Put(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
			if err != nil {
				h.logger.Errorw("Disposal proof upload failed", "error", err)
				respondError(w, http.StatusInternalServerError, "Could not store the disposal proof")
				return
			}
			clearance.ProofImageURL = url
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&clearance); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if clearance.ProofImageURL == "" {
		respondError(w, http.StatusBadRequest, "A disposal proof image is required")
		return
	}

	driver := middleware.Principal(r)
	report, err := h.engine.SubmitClearance(r.Context(), id, driver.ID, clearance.ProofImageURL, clearance.ProofNotes)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// pathID parses the {id} path parameter, responding 404 on garbage so
// malformed ids and absent resources look the same to clients.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return uuid.Nil, false
	}
	return id, true
}

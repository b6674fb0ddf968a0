package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/auth"
	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/middleware"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/services"
	"github.com/wastealert/wastealert-server/internal/storage"
	"github.com/wastealert/wastealert-server/internal/store/memory"
)

type apiEnv struct {
	router      *chi.Mux
	store       *memory.Store
	fleet       *services.FleetService
	engine      *services.AssignmentService
	uploadDir   string
	admin       *models.User
	driver      *models.User
	truck       *models.Truck
	adminToken  string
	driverToken string
}

// envelope mirrors the response wrapper every endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// newAPIEnv stands up the report routes over the in-memory store with real
// token verification, so requests travel the same auth path as production.
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop().Sugar()
	c, err := cache.New("", time.Minute, logger)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer("test-secret-not-for-production", 24*time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	uploads, err := storage.NewDiskStore(dir)
	require.NoError(t, err)

	st := memory.New()
	auditSvc := services.NewAuditService(st, logger)
	credSvc := services.NewCredentialService(st, tokens, logger)
	fleetSvc := services.NewFleetService(st, st, auditSvc, c, logger)
	reportSvc := services.NewReportService(st, c, logger)
	engine := services.NewAssignmentService(st, auditSvc, c, logger)

	e := &apiEnv{
		store:     st,
		fleet:     fleetSvc,
		engine:    engine,
		uploadDir: dir,
	}

	admin, err := credSvc.RegisterAdmin(ctx, &models.AdminRegistration{
		Username: "ops",
		Email:    "ops@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	_, adminToken, err := credSvc.Authenticate(ctx, &models.Credentials{
		Email:    "ops@example.com",
		Password: "hunter2hunter2",
	}, models.RoleAdmin)
	require.NoError(t, err)
	e.admin = admin
	e.adminToken = adminToken

	driver, truck, err := fleetSvc.RegisterDriver(ctx, &models.DriverRegistration{
		Username:     "ade",
		Email:        "ade@example.com",
		Password:     "hunter2hunter2",
		LicensePlate: "LAG-123-XY",
		CapacityTons: 5,
	})
	require.NoError(t, err)
	_, err = fleetSvc.Approve(ctx, driver.ID, admin.ID)
	require.NoError(t, err)
	_, driverToken, err := credSvc.Authenticate(ctx, &models.Credentials{
		Email:    "ade@example.com",
		Password: "hunter2hunter2",
	}, models.RoleDriver)
	require.NoError(t, err)
	e.driver = driver
	e.truck = truck
	e.driverToken = driverToken

	handler := NewReportHandler(reportSvc, engine, uploads, logger)
	requireAdmin := middleware.RequireRole(credSvc, fleetSvc, models.RoleAdmin)
	requireDriver := middleware.RequireRole(credSvc, fleetSvc, models.RoleDriver)

	r := chi.NewRouter()
	r.Route("/reports", func(r chi.Router) {
		r.Post("/", handler.Submit)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", handler.List)
			r.Get("/{id}", handler.Get)
			r.Put("/{id}/assign", handler.Assign)
			r.Delete("/{id}", handler.Delete)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireDriver)
			r.Get("/driver/assigned", handler.Assigned)
			r.Patch("/{id}/confirm-pickup", handler.ConfirmPickup)
			r.Post("/{id}/clear", handler.Clear)
		})
	})
	e.router = r
	return e
}

// do issues a request with the given bearer token; an empty token sends no
// Authorization header.
func (e *apiEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func multipartSubmission(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

var submissionFields = map[string]string{
	"reporter_phone": "+2348012345678",
	"description":    "Pile near market",
	"location_name":  "Behind Market",
	"location_state": "Oyo",
	"location_city":  "Ibadan",
}

func TestSubmitMultipart(t *testing.T) {
	e := newAPIEnv(t)
	body, ct := multipartSubmission(t, submissionFields, "image", "pile.jpg", []byte("jpeg-bytes"))

	rec, env := e.do(t, http.MethodPost, "/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var report models.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusPending, report.Status)
	assert.True(t, strings.HasPrefix(report.ImageURL, "/uploads/"), report.ImageURL)
	assert.True(t, strings.HasSuffix(report.ImageURL, ".jpg"), report.ImageURL)

	// The image actually landed on disk.
	onDisk, err := os.ReadFile(filepath.Join(e.uploadDir, strings.TrimPrefix(report.ImageURL, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), onDisk)
}

func TestSubmitJSON(t *testing.T) {
	e := newAPIEnv(t)
	body := bytes.NewBufferString(`{
		"reporter_phone": "+2348012345678",
		"description": "Pile near market",
		"location_name": "Behind Market",
		"location_state": "Oyo",
		"location_city": "Ibadan",
		"image_url": "img-1"
	}`)

	rec, env := e.do(t, http.MethodPost, "/reports", body, "application/json", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
}

func TestSubmitMissingImage(t *testing.T) {
	e := newAPIEnv(t)
	body, ct := multipartSubmission(t, submissionFields, "", "", nil)

	rec, env := e.do(t, http.MethodPost, "/reports", body, ct, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "image")
}

func TestSubmitIgnoresClientStatus(t *testing.T) {
	e := newAPIEnv(t)
	body := bytes.NewBufferString(`{
		"reporter_phone": "+2348012345678",
		"description": "Pile near market",
		"location_name": "Behind Market",
		"location_state": "Oyo",
		"location_city": "Ibadan",
		"image_url": "img-1",
		"status": "Cleared"
	}`)

	rec, env := e.do(t, http.MethodPost, "/reports", body, "application/json", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var report models.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusPending, report.Status, "client-supplied status is discarded")
}

func TestListAuthGate(t *testing.T) {
	e := newAPIEnv(t)

	rec, env := e.do(t, http.MethodGet, "/reports", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	t.Run("driver token on an admin route", func(t *testing.T) {
		rec, env := e.do(t, http.MethodGet, "/reports", nil, "", e.driverToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodGet, "/reports", nil, "", "undefined")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListWithStatusFilter(t *testing.T) {
	e := newAPIEnv(t)
	body, ct := multipartSubmission(t, submissionFields, "image", "pile.jpg", []byte("x"))
	rec, _ := e.do(t, http.MethodPost, "/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := e.do(t, http.MethodGet, "/reports?status=pending", nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []models.Report
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	assert.Len(t, reports, 1)

	rec, env = e.do(t, http.MethodGet, "/reports?status=In+Progress", nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, "legacy status spelling is normalized")
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	assert.Empty(t, reports)

	rec, env = e.do(t, http.MethodGet, "/reports?status=bogus", nil, "", e.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestAssignEndpointErrorMapping(t *testing.T) {
	e := newAPIEnv(t)
	body, ct := multipartSubmission(t, submissionFields, "image", "pile.jpg", []byte("x"))
	rec, env := e.do(t, http.MethodPost, "/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var report models.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))

	t.Run("missing truck_id", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPut, fmt.Sprintf("/reports/%s/assign", report.ID), bytes.NewBufferString(`{}`), "application/json", e.adminToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("unknown truck", func(t *testing.T) {
		payload := fmt.Sprintf(`{"truck_id": %q}`, uuid.NewString())
		rec, _ := e.do(t, http.MethodPut, fmt.Sprintf("/reports/%s/assign", report.ID), bytes.NewBufferString(payload), "application/json", e.adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("assign succeeds then conflicts", func(t *testing.T) {
		payload := fmt.Sprintf(`{"truck_id": %q}`, e.truck.ID)
		rec, _ := e.do(t, http.MethodPut, fmt.Sprintf("/reports/%s/assign", report.ID), bytes.NewBufferString(payload), "application/json", e.adminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, env := e.do(t, http.MethodPut, fmt.Sprintf("/reports/%s/assign", report.ID), bytes.NewBufferString(payload), "application/json", e.adminToken)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("malformed id reads as not found", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodGet, "/reports/not-a-uuid", nil, "", e.adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDriverWorkflowEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	body, ct := multipartSubmission(t, submissionFields, "image", "pile.jpg", []byte("x"))
	rec, env := e.do(t, http.MethodPost, "/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var report models.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))

	_, err := e.engine.Assign(ctx, report.ID, e.truck.ID, e.admin.ID)
	require.NoError(t, err)

	rec, env = e.do(t, http.MethodGet, "/reports/driver/assigned", nil, "", e.driverToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var assigned []models.Report
	require.NoError(t, json.Unmarshal(env.Data, &assigned))
	require.Len(t, assigned, 1)

	rec, _ = e.do(t, http.MethodPatch, fmt.Sprintf("/reports/%s/confirm-pickup", report.ID), nil, "", e.driverToken)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("clearance without proof", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, fmt.Sprintf("/reports/%s/clear", report.ID), bytes.NewBufferString(`{"proof_notes": "done"}`), "application/json", e.driverToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Error, "proof")
	})

	proofBody, proofCT := multipartSubmission(t, map[string]string{"proof_notes": "taken to Awotan dump"}, "proof_image", "proof.png", []byte("png-bytes"))
	rec, env = e.do(t, http.MethodPost, fmt.Sprintf("/reports/%s/clear", report.ID), proofBody, proofCT, e.driverToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cleared models.Report
	require.NoError(t, json.Unmarshal(env.Data, &cleared))
	assert.Equal(t, models.StatusCleared, cleared.Status)
	require.NotNil(t, cleared.ProofImageURL)
	assert.True(t, strings.HasPrefix(*cleared.ProofImageURL, "/uploads/"))
	require.NotNil(t, cleared.ProofNotes)
	assert.Equal(t, "taken to Awotan dump", *cleared.ProofNotes)

	// The truck is free again.
	truck, err := e.fleet.TruckByDriver(ctx, e.driver.ID)
	require.NoError(t, err)
	assert.False(t, truck.IsBusy)
}

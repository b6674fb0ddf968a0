package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastealert/wastealert-server/internal/models"
)

type stubResolver struct {
	user *models.User
	err  error
	// last token passed to Verify
	token string
}

func (s *stubResolver) Verify(_ context.Context, token string) (*models.User, error) {
	s.token = token
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type stubTrucks struct {
	truck *models.Truck
	err   error
}

func (s *stubTrucks) TruckByDriver(context.Context, uuid.UUID) (*models.Truck, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.truck, nil
}

func doRequest(t *testing.T, mw func(http.Handler) http.Handler, authHeader string, inner http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

func TestRequireRoleRejectsAbsentTokens(t *testing.T) {
	resolver := &stubResolver{user: &models.User{ID: uuid.New(), Role: models.RoleAdmin}}
	mw := RequireRole(resolver, &stubTrucks{}, models.RoleAdmin)

	// Every shape of "no token" gets the same 401 without the resolver ever
	// being consulted.
	headers := []string{
		"",
		"Bearer ",
		"Bearer undefined",
		"Bearer null",
		"Token abc123",
		"abc123",
	}
	for _, h := range headers {
		rec := doRequest(t, mw, h, func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("handler reached with header %q", h)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", h)
		assert.Contains(t, rec.Body.String(), `"success": false`)
		assert.Empty(t, resolver.token, "resolver consulted for header %q", h)
	}
}

func TestRequireRoleRejectsBadToken(t *testing.T) {
	resolver := &stubResolver{err: models.ErrInvalidToken}
	mw := RequireRole(resolver, &stubTrucks{}, models.RoleAdmin)

	rec := doRequest(t, mw, "Bearer not-a-real-token", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with invalid token")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not-a-real-token", resolver.token)
}

func TestRequireRoleRejectsDeletedPrincipal(t *testing.T) {
	resolver := &stubResolver{err: models.ErrPrincipalGone}
	mw := RequireRole(resolver, &stubTrucks{}, models.RoleDriver)

	rec := doRequest(t, mw, "Bearer stale-but-signed", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached for deleted principal")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleEnforcesRole(t *testing.T) {
	driver := &models.User{ID: uuid.New(), Role: models.RoleDriver}
	resolver := &stubResolver{user: driver}
	mw := RequireRole(resolver, &stubTrucks{}, models.RoleAdmin)

	rec := doRequest(t, mw, "Bearer valid", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("driver reached an admin route")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAttachesPrincipal(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	resolver := &stubResolver{user: admin}
	mw := RequireRole(resolver, &stubTrucks{}, models.RoleAdmin)

	called := false
	rec := doRequest(t, mw, "Bearer valid", func(w http.ResponseWriter, r *http.Request) {
		called = true
		got := Principal(r)
		require.NotNil(t, got)
		assert.Equal(t, admin.ID, got.ID)
		assert.Nil(t, Truck(r), "admins carry no truck")
	})
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleAttachesDriverTruck(t *testing.T) {
	driver := &models.User{ID: uuid.New(), Role: models.RoleDriver}
	truck := &models.Truck{ID: uuid.New(), DriverID: driver.ID, LicensePlate: "LAG-123-XY"}
	resolver := &stubResolver{user: driver}
	mw := RequireRole(resolver, &stubTrucks{truck: truck}, models.RoleDriver)

	rec := doRequest(t, mw, "Bearer valid", func(w http.ResponseWriter, r *http.Request) {
		got := Truck(r)
		require.NotNil(t, got)
		assert.Equal(t, truck.ID, got.ID)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("driver without a truck still passes auth", func(t *testing.T) {
		mw := RequireRole(resolver, &stubTrucks{err: models.ErrTruckNotFound}, models.RoleDriver)
		rec := doRequest(t, mw, "Bearer valid", func(w http.ResponseWriter, r *http.Request) {
			assert.Nil(t, Truck(r))
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := doRequest(t, SecurityHeaders(), "", func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimit(t *testing.T) {
	mw := RateLimit(3)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d within the limit", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Package middleware provides HTTP middleware for the WasteAlert server.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/models"
)

// unexported type prevents collisions in context
type ctxKey int

const (
	principalKey ctxKey = iota
	truckKey
)

// PrincipalResolver turns a bearer token into a principal. Implemented by
// services.CredentialService.
type PrincipalResolver interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// TruckResolver looks up a driver's truck. Implemented by
// services.FleetService.
type TruckResolver interface {
	TruckByDriver(ctx context.Context, driverID uuid.UUID) (*models.Truck, error)
}

// Principal returns the authenticated user attached by RequireRole, or nil.
func Principal(r *http.Request) *models.User {
	u, _ := r.Context().Value(principalKey).(*models.User)
	return u
}

// Truck returns the driver's truck attached by RequireRole(driver), which
// may be nil if the driver has no truck.
func Truck(r *http.Request) *models.Truck {
	t, _ := r.Context().Value(truckKey).(*models.Truck)
	return t
}

// bearerToken extracts the token from the Authorization header. A missing
// header, an empty token, and the literal "undefined"/"null" strings that
// clients produce when reading an absent value out of localStorage are all
// treated identically as no token.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	token := strings.TrimSpace(parts[1])
	if token == "" || token == "undefined" || token == "null" {
		return ""
	}
	return token
}

// RequireRole authenticates the request and enforces the given role. For
// drivers it additionally resolves and attaches their truck so downstream
// handlers can check ownership without a second lookup.
func RequireRole(resolver PrincipalResolver, trucks TruckResolver, role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "Authentication token is missing or invalid.")
				return
			}

			user, err := resolver.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w, "Session expired or invalid token.")
				return
			}
			if user.Role != role {
				forbidden(w, "Access restricted.")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, user)
			if role == models.RoleDriver {
				if truck, err := trucks.TruckByDriver(ctx, user.ID); err == nil {
					ctx = context.WithValue(ctx, truckKey, truck)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success": false, "error": "` + msg + `"}`))
}

func forbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"success": false, "error": "` + msg + `"}`))
}

// StructuredLogger returns a middleware that logs HTTP requests with zap.
func StructuredLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", r.Header.Get("X-Request-ID")),
			)
		})
	}
}

// SecurityHeaders sets the usual response hardening headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit implements a simple in-memory rate limiter using sliding window,
// keyed by client IP (RealIP middleware runs before this).
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	type client struct {
		count    int
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Cleanup stale entries every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for key, c := range clients {
				if time.Since(c.lastSeen) > 2*time.Minute {
					delete(clients, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr

			mu.Lock()
			c, exists := clients[key]
			if !exists {
				clients[key] = &client{count: 1, lastSeen: time.Now()}
				mu.Unlock()
				next.ServeHTTP(w, r)
				return
			}

			if time.Since(c.lastSeen) > time.Minute {
				c.count = 1
				c.lastSeen = time.Now()
			} else {
				c.count++
			}

			if c.count > requestsPerMinute {
				mu.Unlock()
				http.Error(w, `{"success": false, "error": "Rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

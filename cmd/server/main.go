// Package main is the entry point for the WasteAlert backend server. It
// provides a REST API for citizen waste-pile reporting, admin triage and
// fleet assignment, and the driver pickup/clearance workflow.
//
// Architecture:
//   - Reports, trucks and users live in PostgreSQL; every coupled
//     report/truck transition is a single transaction
//   - Bearer-token auth (JWT) with admin and driver roles; driver logins are
//     gated on admin approval
//   - Proof images go through an object store and only their URLs are kept
//   - List endpoints are cached in redis and invalidated on every mutation
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/auth"
	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/config"
	"github.com/wastealert/wastealert-server/internal/database"
	"github.com/wastealert/wastealert-server/internal/handlers"
	"github.com/wastealert/wastealert-server/internal/middleware"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/services"
	"github.com/wastealert/wastealert-server/internal/storage"
	"github.com/wastealert/wastealert-server/internal/store/postgres"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting WasteAlert Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"cache", cfg.RedisURL != "",
	)

	// Initialize database connection pool and schema
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()
	if err := database.Migrate(migrateCtx, db); err != nil {
		sugar.Fatalf("Failed to apply schema: %v", err)
	}

	// Supporting infrastructure
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		sugar.Fatalf("Failed to initialize token issuer: %v", err)
	}
	readCache, err := cache.New(cfg.RedisURL, 5*time.Minute, sugar)
	if err != nil {
		sugar.Fatalf("Failed to connect to redis: %v", err)
	}
	uploads, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		sugar.Fatalf("Failed to prepare upload directory: %v", err)
	}

	// Initialize store and services
	st := postgres.New(db)
	auditSvc := services.NewAuditService(st, sugar)
	credSvc := services.NewCredentialService(st, tokens, sugar)
	fleetSvc := services.NewFleetService(st, st, auditSvc, readCache, sugar)
	reportSvc := services.NewReportService(st, readCache, sugar)
	engine := services.NewAssignmentService(st, auditSvc, readCache, sugar)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(credSvc, fleetSvc, sugar)
	reportHandler := handlers.NewReportHandler(reportSvc, engine, uploads, sugar)
	fleetHandler := handlers.NewFleetHandler(fleetSvc, credSvc, sugar)
	auditHandler := handlers.NewAuditHandler(auditSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, readCache, sugar)

	requireAdmin := middleware.RequireRole(credSvc, fleetSvc, models.RoleAdmin)
	requireDriver := middleware.RequireRole(credSvc, fleetSvc, models.RoleDriver)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Admin credentials
		r.Post("/auth/register", authHandler.AdminRegister)
		r.Post("/auth/login", authHandler.AdminLogin)

		// Driver credentials (registration bundles the truck)
		r.Route("/drivers/auth", func(r chi.Router) {
			r.Post("/register", authHandler.DriverRegister)
			r.Post("/login", authHandler.DriverLogin)
			r.With(requireDriver).Get("/profile", authHandler.DriverProfile)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reportHandler.Submit) // citizen submission, no auth

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", reportHandler.List)
				r.Get("/{id}", reportHandler.Get)
				r.Put("/{id}/assign", reportHandler.Assign)
				r.Put("/{id}/unassign", reportHandler.Unassign)
				r.Delete("/{id}", reportHandler.Delete)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireDriver)
				r.Get("/driver/assigned", reportHandler.Assigned)
				r.Patch("/{id}/confirm-pickup", reportHandler.ConfirmPickup)
				r.Post("/{id}/clear", reportHandler.Clear)
			})
		})

		// Fleet management (admin)
		r.Route("/trucks", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", fleetHandler.ListTrucks)
			r.Get("/available", fleetHandler.AvailableTrucks)
			r.Put("/{id}", fleetHandler.UpdateTruck)
			r.Delete("/{id}", fleetHandler.DeleteTruck)
		})

		// User management (admin)
		r.Route("/users", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", fleetHandler.ListUsers)
			r.Get("/drivers/pending", fleetHandler.PendingDrivers)
			r.Patch("/{id}/approve", fleetHandler.ApproveDriver)
		})

		// Workflow audit trail (admin)
		r.With(requireAdmin).Get("/audit/recent", auditHandler.Recent)
	})

	// Serve uploaded proof images
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploads.Dir()))))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

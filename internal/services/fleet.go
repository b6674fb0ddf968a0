package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/auth"
	"github.com/wastealert/wastealert-server/internal/cache"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/store"
)

// Cache keys for the fleet read model.
const (
	cacheKeyTrucks          = "wastealert:trucks:all"
	cacheKeyTrucksAvailable = "wastealert:trucks:available"
)

// FleetService manages trucks and driver registration.
type FleetService struct {
	fleet  store.Fleet
	users  store.Users
	audit  *AuditService
	cache  *cache.Cache
	logger *zap.SugaredLogger
}

// NewFleetService creates a fleet service.
func NewFleetService(fleet store.Fleet, users store.Users, audit *AuditService, c *cache.Cache, logger *zap.SugaredLogger) *FleetService {
	return &FleetService{fleet: fleet, users: users, audit: audit, cache: c, logger: logger}
}

// RegisterDriver creates the driver account and its truck atomically. Both
// start unapproved; the truck starts not busy.
func (s *FleetService) RegisterDriver(ctx context.Context, reg *models.DriverRegistration) (*models.User, *models.Truck, error) {
	if err := reg.Validate(); err != nil {
		return nil, nil, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(reg.Username),
		Email:        strings.ToLower(strings.TrimSpace(reg.Email)),
		PasswordHash: hash,
		Role:         models.RoleDriver,
		IsApproved:   false,
		CreatedAt:    now,
	}
	truck := &models.Truck{
		ID:           uuid.New(),
		LicensePlate: strings.ToUpper(strings.TrimSpace(reg.LicensePlate)),
		DriverID:     user.ID,
		DriverName:   user.Username,
		CapacityTons: reg.CapacityTons,
		IsApproved:   false,
		IsBusy:       false,
		CreatedAt:    now,
	}
	if err := s.fleet.CreateDriverWithTruck(ctx, user, truck); err != nil {
		return nil, nil, err
	}

	s.cache.Invalidate(ctx, cacheKeyTrucks)
	s.logger.Infow("Driver registered, pending approval",
		"user_id", user.ID, "truck_id", truck.ID, "plate", truck.LicensePlate)
	return user, truck, nil
}

// Approve flips the driver's approval flag, and the truck's with it.
// Idempotent.
func (s *FleetService) Approve(ctx context.Context, driverID, actorID uuid.UUID) (*models.User, error) {
	user, err := s.users.ApproveDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheKeyTrucks, cacheKeyTrucksAvailable)
	s.audit.Record(ctx, actorID, "driver.approve", nil, "driver "+user.Username)
	s.logger.Infow("Driver approved", "user_id", user.ID, "by", actorID)
	return user, nil
}

// Trucks lists the whole fleet, served from cache when warm.
func (s *FleetService) Trucks(ctx context.Context) ([]models.Truck, error) {
	var trucks []models.Truck
	if s.cache.GetJSON(ctx, cacheKeyTrucks, &trucks) {
		return trucks, nil
	}
	trucks, err := s.fleet.ListTrucks(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, cacheKeyTrucks, trucks)
	return trucks, nil
}

// AvailableTrucks lists approved, not-busy trucks for the assign dropdown.
// Advisory only; assignment re-validates under its own transaction.
func (s *FleetService) AvailableTrucks(ctx context.Context) ([]models.Truck, error) {
	var trucks []models.Truck
	if s.cache.GetJSON(ctx, cacheKeyTrucksAvailable, &trucks) {
		return trucks, nil
	}
	trucks, err := s.fleet.ListAvailableTrucks(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, cacheKeyTrucksAvailable, trucks)
	return trucks, nil
}

// TruckByDriver resolves a driver's truck.
func (s *FleetService) TruckByDriver(ctx context.Context, driverID uuid.UUID) (*models.Truck, error) {
	return s.fleet.TruckByDriver(ctx, driverID)
}

// Update applies an admin edit of truck details. Plates are normalized the
// same way registration normalizes them, so both stores only ever see one
// spelling of a plate.
func (s *FleetService) Update(ctx context.Context, truckID uuid.UUID, patch models.TruckPatch) (*models.Truck, error) {
	if patch.LicensePlate != nil {
		plate := strings.ToUpper(strings.TrimSpace(*patch.LicensePlate))
		patch.LicensePlate = &plate
	}
	truck, err := s.fleet.UpdateTruck(ctx, truckID, patch)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheKeyTrucks, cacheKeyTrucksAvailable)
	return truck, nil
}

// Delete rejects a truck: removes it and the owning driver account, and
// reverts any actively assigned report to Pending.
func (s *FleetService) Delete(ctx context.Context, truckID, actorID uuid.UUID) error {
	if err := s.fleet.DeleteTruck(ctx, truckID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyTrucks, cacheKeyTrucksAvailable, cacheKeyReports)
	s.audit.Record(ctx, actorID, "truck.delete", nil, "truck "+truckID.String())
	s.logger.Infow("Truck deleted, driver account removed", "truck_id", truckID, "by", actorID)
	return nil
}

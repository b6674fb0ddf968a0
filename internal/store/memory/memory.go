// Package memory is a mutex-guarded, in-process implementation of the store
// interfaces. It mirrors the postgres semantics exactly, including the
// all-or-nothing behavior of the coupled report/truck transitions, and is
// what the service tests run against. FailNextCommit injects a commit
// failure so tests can check that a rolled-back transition leaves both
// resources untouched.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wastealert/wastealert-server/internal/models"
)

// Store holds everything behind one mutex: every operation, including the
// two-resource transitions, is a single critical section.
type Store struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	trucks  map[uuid.UUID]*models.Truck
	reports map[uuid.UUID]*models.Report
	audit   []models.AuditEntry

	failCommit error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]*models.User),
		trucks:  make(map[uuid.UUID]*models.Truck),
		reports: make(map[uuid.UUID]*models.Report),
	}
}

// FailNextCommit makes the next coupled transition fail with err after its
// guards have passed but before any write lands, the moral equivalent of a
// crash at commit time.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

// takeFailure consumes a pending injected failure. Caller holds the lock.
func (s *Store) takeFailure() error {
	err := s.failCommit
	s.failCommit = nil
	return err
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyTruck(t *models.Truck) *models.Truck {
	c := *t
	return &c
}

func copyReport(r *models.Report) *models.Report {
	c := *r
	if r.AssignedTruckID != nil {
		id := *r.AssignedTruckID
		c.AssignedTruckID = &id
	}
	if r.DateAssigned != nil {
		ts := *r.DateAssigned
		c.DateAssigned = &ts
	}
	if r.DateCleared != nil {
		ts := *r.DateCleared
		c.DateCleared = &ts
	}
	if r.ProofImageURL != nil {
		v := *r.ProofImageURL
		c.ProofImageURL = &v
	}
	if r.ProofNotes != nil {
		v := *r.ProofNotes
		c.ProofNotes = &v
	}
	return &c
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identityTakenLocked(u.Username, u.Email) {
		return models.ErrDuplicateIdentity
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) identityTakenLocked(username, email string) bool {
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, email) || strings.EqualFold(existing.Username, username) {
			return true
		}
	}
	return false
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) ListPendingDrivers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.User
	for _, u := range s.users {
		if u.Role == models.RoleDriver && !u.IsApproved {
			pending = append(pending, *copyUser(u))
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	return pending, nil
}

func (s *Store) ApproveDriver(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Role != models.RoleDriver {
		return nil, models.ErrUserNotFound
	}
	u.IsApproved = true
	for _, t := range s.trucks {
		if t.DriverID == id {
			t.IsApproved = true
		}
	}
	return copyUser(u), nil
}

// --- Fleet ---

func (s *Store) CreateDriverWithTruck(_ context.Context, u *models.User, t *models.Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identityTakenLocked(u.Username, u.Email) {
		return models.ErrDuplicateIdentity
	}
	for _, existing := range s.trucks {
		if strings.EqualFold(existing.LicensePlate, t.LicensePlate) {
			return models.ErrDuplicatePlate
		}
		if existing.DriverID == t.DriverID {
			return models.ErrDriverAlreadyHasUnit
		}
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.users[u.ID] = copyUser(u)
	s.trucks[t.ID] = copyTruck(t)
	return nil
}

func (s *Store) TruckByID(_ context.Context, id uuid.UUID) (*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trucks[id]
	if !ok {
		return nil, models.ErrTruckNotFound
	}
	return copyTruck(t), nil
}

func (s *Store) TruckByDriver(_ context.Context, driverID uuid.UUID) (*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trucks {
		if t.DriverID == driverID {
			return copyTruck(t), nil
		}
	}
	return nil, models.ErrTruckNotFound
}

func (s *Store) ListTrucks(_ context.Context) ([]models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trucks := make([]models.Truck, 0, len(s.trucks))
	for _, t := range s.trucks {
		trucks = append(trucks, *copyTruck(t))
	}
	sort.Slice(trucks, func(i, j int) bool { return trucks[i].CreatedAt.After(trucks[j].CreatedAt) })
	return trucks, nil
}

func (s *Store) ListAvailableTrucks(_ context.Context) ([]models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var available []models.Truck
	for _, t := range s.trucks {
		if t.IsApproved && !t.IsBusy {
			available = append(available, *copyTruck(t))
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].CreatedAt.After(available[j].CreatedAt) })
	return available, nil
}

func (s *Store) UpdateTruck(_ context.Context, id uuid.UUID, patch models.TruckPatch) (*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trucks[id]
	if !ok {
		return nil, models.ErrTruckNotFound
	}
	if patch.LicensePlate != nil {
		for otherID, other := range s.trucks {
			if otherID != id && strings.EqualFold(other.LicensePlate, *patch.LicensePlate) {
				return nil, models.ErrDuplicatePlate
			}
		}
		t.LicensePlate = *patch.LicensePlate
	}
	if patch.CapacityTons != nil {
		t.CapacityTons = *patch.CapacityTons
	}
	return copyTruck(t), nil
}

func (s *Store) DeleteTruck(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trucks[id]
	if !ok {
		return models.ErrTruckNotFound
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	for _, r := range s.reports {
		if r.AssignedTruckID != nil && *r.AssignedTruckID == id {
			if r.Status.Active() {
				r.Status = models.StatusPending
				r.DateAssigned = nil
			}
			r.AssignedTruckID = nil
		}
	}
	delete(s.users, t.DriverID)
	delete(s.trucks, id)
	return nil
}

// --- Reports ---

func (s *Store) CreateReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = copyReport(r)
	return nil
}

func (s *Store) ReportByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	return copyReport(r), nil
}

func (s *Store) ListReports(_ context.Context, status *models.ReportStatus) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reports []models.Report
	for _, r := range s.reports {
		if status == nil || r.Status == *status {
			reports = append(reports, *copyReport(r))
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].DateReported.After(reports[j].DateReported) })
	return reports, nil
}

func (s *Store) ActiveReportsByTruck(_ context.Context, truckID uuid.UUID) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reports []models.Report
	for _, r := range s.reports {
		if r.AssignedTruckID != nil && *r.AssignedTruckID == truckID && r.Status.Active() {
			reports = append(reports, *copyReport(r))
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].DateReported.After(reports[j].DateReported) })
	return reports, nil
}

func (s *Store) DeleteReport(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return models.ErrReportNotFound
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	if r.Status.Active() && r.AssignedTruckID != nil {
		if t, ok := s.trucks[*r.AssignedTruckID]; ok {
			t.IsBusy = false
		}
	}
	delete(s.reports, id)
	return nil
}

// --- Workflow ---

func (s *Store) AssignReport(_ context.Context, reportID, truckID uuid.UUID, now time.Time) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	if r.Status != models.StatusPending {
		return nil, models.ErrReportAlreadyAssigned
	}
	t, ok := s.trucks[truckID]
	if !ok {
		return nil, models.ErrTruckNotFound
	}
	if !t.IsApproved {
		return nil, models.ErrTruckNotApproved
	}
	if t.IsBusy {
		return nil, models.ErrTruckBusy
	}
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	t.IsBusy = true
	r.Status = models.StatusAssigned
	id := truckID
	r.AssignedTruckID = &id
	ts := now
	r.DateAssigned = &ts
	return copyReport(r), nil
}

func (s *Store) UnassignReport(_ context.Context, reportID uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	if r.AssignedTruckID == nil {
		return nil, models.ErrNotAssigned
	}
	if r.Status != models.StatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if t, ok := s.trucks[*r.AssignedTruckID]; ok {
		t.IsBusy = false
	}
	r.Status = models.StatusPending
	r.AssignedTruckID = nil
	r.DateAssigned = nil
	return copyReport(r), nil
}

func (s *Store) MarkInProgress(_ context.Context, reportID, truckID uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	if r.Status != models.StatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	if r.AssignedTruckID == nil || *r.AssignedTruckID != truckID {
		return nil, models.ErrForbidden
	}
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	r.Status = models.StatusInProgress
	return copyReport(r), nil
}

func (s *Store) ClearReport(_ context.Context, reportID uuid.UUID, proofURL, notes string, now time.Time) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	if r.Status != models.StatusInProgress {
		return nil, models.ErrInvalidTransition
	}
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	r.Status = models.StatusCleared
	ts := now
	r.DateCleared = &ts
	proof := proofURL
	r.ProofImageURL = &proof
	n := notes
	r.ProofNotes = &n
	if r.AssignedTruckID != nil {
		if t, ok := s.trucks[*r.AssignedTruckID]; ok {
			t.IsBusy = false
		}
	}
	return copyReport(r), nil
}

// --- Audit ---

func (s *Store) AppendAudit(_ context.Context, e *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *e)
	return nil
}

func (s *Store) RecentAudit(_ context.Context, limit int) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]models.AuditEntry, len(s.audit))
	copy(entries, s.audit)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

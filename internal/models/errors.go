package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the stores, services and HTTP layer. Handlers map
// these onto the response taxonomy; raw storage errors never reach clients.
var (
	// Authentication / authorization.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPrincipalGone      = errors.New("principal no longer exists")
	ErrForbidden          = errors.New("forbidden")

	// Lookups.
	ErrReportNotFound = errors.New("report not found")
	ErrTruckNotFound  = errors.New("truck not found")
	ErrUserNotFound   = errors.New("user not found")

	// Conflicts.
	ErrDuplicateIdentity     = errors.New("username or email already registered")
	ErrDuplicatePlate        = errors.New("license plate already registered")
	ErrDriverAlreadyHasUnit  = errors.New("driver already owns a truck")
	ErrTruckBusy             = errors.New("truck is already servicing a report")
	ErrReportAlreadyAssigned = errors.New("report is already assigned")

	// Workflow.
	ErrTruckNotApproved  = errors.New("truck is not approved for assignment")
	ErrNotAssigned       = errors.New("report has no truck assigned")
	ErrInvalidTransition = errors.New("illegal status transition")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

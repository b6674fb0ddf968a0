// Package services contains the business logic layers. Services are called
// by handlers, operate on the store interfaces, and never see HTTP.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wastealert/wastealert-server/internal/auth"
	"github.com/wastealert/wastealert-server/internal/models"
	"github.com/wastealert/wastealert-server/internal/store"
)

// CredentialService registers principals, authenticates logins and resolves
// bearer tokens back to principals.
type CredentialService struct {
	users  store.Users
	tokens *auth.TokenIssuer
	logger *zap.SugaredLogger
}

// NewCredentialService creates a credential service.
func NewCredentialService(users store.Users, tokens *auth.TokenIssuer, logger *zap.SugaredLogger) *CredentialService {
	return &CredentialService{users: users, tokens: tokens, logger: logger}
}

// RegisterAdmin creates an admin account. Admins are approved on creation.
func (s *CredentialService) RegisterAdmin(ctx context.Context, reg *models.AdminRegistration) (*models.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(reg.Username),
		Email:        strings.ToLower(strings.TrimSpace(reg.Email)),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsApproved:   true,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Infow("Admin registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies credentials for the expected role and issues a
// token. An unapproved driver is rejected with ErrPendingApproval before any
// token is issued, independent of password correctness.
func (s *CredentialService) Authenticate(ctx context.Context, creds *models.Credentials, role models.Role) (*models.User, string, error) {
	user, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		return nil, "", models.ErrInvalidCredentials
	}
	if user.Role != role {
		return nil, "", models.ErrInvalidCredentials
	}
	if user.Role == models.RoleDriver && !user.IsApproved {
		return nil, "", models.ErrPendingApproval
	}
	if !auth.CheckPassword(user.PasswordHash, creds.Password) {
		return nil, "", models.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	s.logger.Infow("Login", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Verify resolves a bearer token to its principal. A valid token whose
// principal has since been deleted fails with ErrPrincipalGone, so cascading
// driver deletion cuts off live sessions.
func (s *CredentialService) Verify(ctx context.Context, token string) (*models.User, error) {
	id, role, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		return nil, models.ErrPrincipalGone
	}
	if user.Role != role {
		return nil, models.ErrInvalidToken
	}
	return user, nil
}

// Users lists all principals for the admin fleet table.
func (s *CredentialService) Users(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

// PendingDrivers lists unapproved driver accounts.
func (s *CredentialService) PendingDrivers(ctx context.Context) ([]models.User, error) {
	return s.users.ListPendingDrivers(ctx)
}

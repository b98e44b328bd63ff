package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"navconsole/internal/model"
	"navconsole/internal/repository"
	"navconsole/internal/session"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Account  string `json:"account" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=100"`
}

type LoginResponse struct {
	Token      string              `json:"token"`
	ExpiresAt  time.Time           `json:"expires_at"`
	Credential *session.Credential `json:"credential"`
}

type AuthService interface {
	// Authenticate checks account and password and returns the user with roles and
	// their permissions loaded. It fails with ErrNotFound or ErrInvalidCredential.
	Authenticate(ctx context.Context, account, password string) (*model.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, cred *session.Credential) error
	Refresh(ctx context.Context, cred *session.Credential) (*LoginResponse, error)
}

type authService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	sessions  *session.Authenticator
}

func NewAuthService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	sessions *session.Authenticator,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		sessions:  sessions,
	}
}

// dummyHash is compared against when the account does not exist so both failure paths
// cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("navconsole-dummy-password"), bcrypt.DefaultCost)

func (s *authService) Authenticate(ctx context.Context, account, password string) (*model.User, error) {
	user, err := s.userRepo.FindByAccount(ctx, account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, fmt.Errorf("%w: account %q", ErrNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	roles, err := s.roleRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user roles: %w", err)
	}
	if err := s.roleRepo.LoadPermissions(ctx, roles); err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}
	user.Roles = roles
	return user, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.Authenticate(ctx, req.Account, req.Password)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredential) {
		return nil, fmt.Errorf("%w: invalid account or password", ErrInvalidCredential)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: account is disabled", ErrForbidden)
	}

	token, cred, err := s.sessions.Issuer().Issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &user.ID,
		Action:     model.ActionLogin,
		EntityID:   user.ID.String(),
		EntityName: user.Account,
	}); err != nil {
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: cred.ExpiresAt, Credential: cred}, nil
}

func (s *authService) Logout(ctx context.Context, cred *session.Credential) error {
	if cred == nil {
		return ErrUnauthorized
	}
	if err := s.sessions.Logout(ctx, cred); err != nil {
		return err
	}
	userID := cred.UserID
	return s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &userID,
		Action:     model.ActionLogout,
		EntityID:   userID.String(),
		EntityName: cred.Account,
	})
}

// Refresh re-signs the presented credential without reloading roles.
func (s *authService) Refresh(_ context.Context, cred *session.Credential) (*LoginResponse, error) {
	if cred == nil {
		return nil, ErrUnauthorized
	}
	token, next, err := s.sessions.Issuer().Refresh(cred)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: next.ExpiresAt, Credential: next}, nil
}

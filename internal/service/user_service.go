package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"navconsole/internal/model"
	"navconsole/internal/repository"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Account  string       `json:"account" validate:"required,min=1,max=100"`
	Password string       `json:"password" validate:"required,min=6,max=100"`
	Email    string       `json:"email" validate:"required,email,max=255"`
	Avatar   string       `json:"avatar" validate:"omitempty,url,max=500"`
	Status   model.Status `json:"status" validate:"omitempty,oneof=1 2"`
	Roles    []string     `json:"roles" validate:"omitempty,dive,required"` // role ids or names
}

// UpdateUserRequest only touches fields that are present. Roles, when present, replaces
// the whole role set.
type UpdateUserRequest struct {
	Account  *string       `json:"account" validate:"omitempty,min=1,max=100"`
	Password *string       `json:"password" validate:"omitempty,min=6,max=100"`
	Email    *string       `json:"email" validate:"omitempty,email,max=255"`
	Avatar   *string       `json:"avatar" validate:"omitempty,max=500"`
	Status   *model.Status `json:"status" validate:"omitempty,oneof=1 2"`
	Roles    *[]string     `json:"roles" validate:"omitempty,dive,required"`
}

type RoleSummary struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status model.Status `json:"status"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        string        `json:"id"`
	Account   string        `json:"account"`
	Email     string        `json:"email"`
	Avatar    string        `json:"avatar"`
	Status    model.Status  `json:"status"`
	Roles     []RoleSummary `json:"roles"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, filter repository.UserFilter, page pagination.Params) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	revoker   SessionRevoker
	notifier  ChangeNotifier
}

// NewUserService returns a new instance of UserService. revoker and notifier may be nil.
func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	revoker SessionRevoker,
	notifier ChangeNotifier,
) UserService {
	return &userService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		revoker:   revoker,
		notifier:  notifier,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toUserResponse(u *model.User) *UserResponse {
	roles := make([]RoleSummary, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, RoleSummary{ID: r.ID.String(), Name: r.Name, Status: r.Status})
	}
	return &UserResponse{
		ID:        u.ID.String(),
		Account:   u.Account,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Status:    u.Status,
		Roles:     roles,
		CreatedAt: u.CreatedAt.Format(timeLayout),
		UpdatedAt: u.UpdatedAt.Format(timeLayout),
	}
}

func parseID(id, what string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q not found", ErrNotFound, what, id)
	}
	return parsed, nil
}

func hashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// checkUserConflict rejects account or email already held by a user other than excludeID.
func (s *userService) checkUserConflict(ctx context.Context, account, email string, excludeID uuid.UUID) error {
	existing, err := s.userRepo.FindConflict(ctx, account, email, excludeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check user uniqueness: %w", err)
	}
	if existing.Account == account {
		return fmt.Errorf("%w: account %q already exists", ErrConflict, account)
	}
	return fmt.Errorf("%w: email %q already exists", ErrConflict, email)
}

// resolveRoles turns role ids or names into ids. Every reference must resolve.
func resolveRoles(ctx context.Context, repo repository.RoleRepository, refs []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	var names []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
		} else {
			names = append(names, ref)
		}
	}

	byID, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	byName, err := repo.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	found := make(map[string]uuid.UUID, len(byID)+len(byName))
	for _, r := range byID {
		found[r.ID.String()] = r.ID
	}
	for _, r := range byName {
		found[r.Name] = r.ID
	}

	out := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		key := ref
		if id, err := uuid.Parse(ref); err == nil {
			key = id.String()
		}
		id, ok := found[key]
		if !ok {
			return nil, fmt.Errorf("%w: role %q not found", ErrNotFound, ref)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *userService) withRoles(ctx context.Context, user *model.User) error {
	roles, err := s.roleRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch user roles: %w", err)
	}
	user.Roles = roles
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Status == 0 {
		req.Status = model.StatusActive
	}

	if err := s.checkUserConflict(ctx, req.Account, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Account:  req.Account,
		Email:    req.Email,
		Password: hashed,
		Avatar:   req.Avatar,
		Status:   req.Status,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		roleIDs, err := resolveRoles(txCtx, s.roleRepo, req.Roles)
		if err != nil {
			return err
		}
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return storeErr(err, "user")
		}
		if err := s.userRepo.ReplaceRoles(txCtx, user.ID, roleIDs); err != nil {
			return fmt.Errorf("failed to assign roles: %w", err)
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionCreateUser,
			EntityID:   user.ID.String(),
			EntityName: user.Account,
			Details:    auditDetails(map[string]interface{}{"email": user.Email, "roles": req.Roles}),
		})
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionCreateUser, user.ID.String())
	return s.GetUser(ctx, user.ID.String())
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if err := s.withRoles(ctx, user); err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter, page pagination.Params) ([]UserResponse, int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: status must be one of [1 2]", ErrValidation)
	}

	users, total, err := s.userRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		if err := s.withRoles(ctx, &users[i]); err != nil {
			return nil, 0, err
		}
		res = append(res, *toUserResponse(&users[i]))
	}
	return res, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}

	var changed []string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.FindByID(txCtx, userID)
		if err != nil {
			return storeErr(err, "user")
		}
		wasActive := user.IsActive()

		account, email := "", ""
		if req.Account != nil && *req.Account != user.Account {
			account = *req.Account
		}
		if req.Email != nil && *req.Email != user.Email {
			email = *req.Email
		}
		if account != "" || email != "" {
			if err := s.checkUserConflict(txCtx, account, email, user.ID); err != nil {
				return err
			}
		}

		if account != "" {
			user.Account = account
			changed = append(changed, "account")
		}
		if email != "" {
			user.Email = email
			changed = append(changed, "email")
		}
		if req.Password != nil {
			hashed, err := hashPassword(*req.Password)
			if err != nil {
				return err
			}
			user.Password = hashed
			changed = append(changed, "password")
		}
		if req.Avatar != nil {
			user.Avatar = *req.Avatar
			changed = append(changed, "avatar")
		}
		if req.Status != nil && *req.Status != user.Status {
			user.Status = *req.Status
			changed = append(changed, "status")
		}

		if err := s.userRepo.Update(txCtx, user); err != nil {
			return storeErr(err, "user")
		}

		if req.Roles != nil {
			roleIDs, err := resolveRoles(txCtx, s.roleRepo, *req.Roles)
			if err != nil {
				return err
			}
			if err := s.userRepo.ReplaceRoles(txCtx, user.ID, roleIDs); err != nil {
				return fmt.Errorf("failed to replace roles: %w", err)
			}
			changed = append(changed, "roles")
		}

		if err := s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionUpdateUser,
			EntityID:   user.ID.String(),
			EntityName: user.Account,
			Details:    auditDetails(map[string]interface{}{"changed": changed}),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		if wasActive && !user.IsActive() {
			return revoke(txCtx, s.revoker, []uuid.UUID{user.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionUpdateUser, userID.String())
	return s.GetUser(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := parseID(id, "user")
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.FindByID(txCtx, userID)
		if err != nil {
			return storeErr(err, "user")
		}
		if err := s.userRepo.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if err := s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionDeleteUser,
			EntityID:   user.ID.String(),
			EntityName: user.Account,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return revoke(txCtx, s.revoker, []uuid.UUID{user.ID})
	})
	if err != nil {
		return err
	}

	notify(ctx, s.notifier, model.ActionDeleteUser, userID.String())
	return nil
}

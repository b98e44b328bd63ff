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
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string       `json:"name" validate:"required,min=1,max=100"`
	Description string       `json:"description" validate:"max=1000"`
	Status      model.Status `json:"status" validate:"omitempty,oneof=1 2"`
	Permissions []string     `json:"permissions" validate:"omitempty,dive,required"` // permission ids or codes
}

type UpdateRoleRequest struct {
	Name        *string       `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string       `json:"description" validate:"omitempty,max=1000"`
	Status      *model.Status `json:"status" validate:"omitempty,oneof=1 2"`
	Permissions *[]string     `json:"permissions" validate:"omitempty,dive,required"`
}

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      model.Status         `json:"status"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

// --- Interface ---

type RoleService interface {
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	ListRoles(ctx context.Context, filter repository.RoleFilter, page pagination.Params) ([]RoleResponse, int64, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	UpdateRolePermissions(ctx context.Context, id string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	permRepo  repository.PermissionRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	revoker   SessionRevoker
	notifier  ChangeNotifier
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	revoker SessionRevoker,
	notifier ChangeNotifier,
) RoleService {
	return &roleService{
		roleRepo:  roleRepo,
		permRepo:  permRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		revoker:   revoker,
		notifier:  notifier,
	}
}

// --- Implementation ---

func (s *roleService) checkNameConflict(ctx context.Context, name string, excludeID uuid.UUID) error {
	_, err := s.roleRepo.FindConflict(ctx, name, excludeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check role uniqueness: %w", err)
	}
	return fmt.Errorf("%w: role %q already exists", ErrConflict, name)
}

// resolvePermissions turns permission ids or codes into ids. Every reference must resolve.
func resolvePermissions(ctx context.Context, repo repository.PermissionRepository, refs []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	var codes []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
		} else {
			codes = append(codes, ref)
		}
	}

	byID, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	byCode, err := repo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	found := make(map[string]uuid.UUID, len(byID)+len(byCode))
	for _, p := range byID {
		found[p.ID.String()] = p.ID
	}
	for _, p := range byCode {
		found[p.Code] = p.ID
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
			return nil, fmt.Errorf("%w: permission %q not found", ErrNotFound, ref)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Status == 0 {
		req.Status = model.StatusActive
	}
	if err := s.checkNameConflict(ctx, req.Name, uuid.Nil); err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		permIDs, err := resolvePermissions(txCtx, s.permRepo, req.Permissions)
		if err != nil {
			return err
		}
		if err := s.roleRepo.Create(txCtx, role); err != nil {
			return storeErr(err, "role")
		}
		if err := s.roleRepo.ReplacePermissions(txCtx, role.ID, permIDs); err != nil {
			return fmt.Errorf("failed to assign permissions: %w", err)
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionCreateRole,
			EntityID:   role.ID.String(),
			EntityName: role.Name,
			Details:    auditDetails(map[string]interface{}{"permissions": req.Permissions}),
		})
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionCreateRole, role.ID.String())
	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, storeErr(err, "role")
	}

	roles := []model.Role{*role}
	if err := s.roleRepo.LoadPermissions(ctx, roles); err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}
	resp := toRoleResponse(roles[0])
	return &resp, nil
}

func (s *roleService) ListRoles(ctx context.Context, filter repository.RoleFilter, page pagination.Params) ([]RoleResponse, int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: status must be one of [1 2]", ErrValidation)
	}

	roles, total, err := s.roleRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch roles: %w", err)
	}
	if err := s.roleRepo.LoadPermissions(ctx, roles); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch role permissions: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, total, nil
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByID(txCtx, roleID)
		if err != nil {
			return storeErr(err, "role")
		}
		wasActive := role.IsActive()

		var changed []string
		if req.Name != nil && *req.Name != role.Name {
			if err := s.checkNameConflict(txCtx, *req.Name, role.ID); err != nil {
				return err
			}
			role.Name = *req.Name
			changed = append(changed, "name")
		}
		if req.Description != nil {
			role.Description = *req.Description
			changed = append(changed, "description")
		}
		if req.Status != nil && *req.Status != role.Status {
			role.Status = *req.Status
			changed = append(changed, "status")
		}
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			return storeErr(err, "role")
		}

		if req.Permissions != nil {
			if err := s.replacePermissions(txCtx, role, *req.Permissions); err != nil {
				return err
			}
			changed = append(changed, "permissions")
		}

		if err := s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionUpdateRole,
			EntityID:   role.ID.String(),
			EntityName: role.Name,
			Details:    auditDetails(map[string]interface{}{"changed": changed}),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		if wasActive && !role.IsActive() {
			return s.revokeHolders(txCtx, role.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionUpdateRole, roleID.String())
	return s.GetRole(ctx, id)
}

// UpdateRolePermissions replaces the role's permission set. Repeating the call with the
// same set leaves the same rows behind.
func (s *roleService) UpdateRolePermissions(ctx context.Context, id string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByID(txCtx, roleID)
		if err != nil {
			return storeErr(err, "role")
		}
		if err := s.replacePermissions(txCtx, role, req.Permissions); err != nil {
			return err
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionUpdateRolePermissions,
			EntityID:   role.ID.String(),
			EntityName: role.Name,
			Details:    auditDetails(map[string]interface{}{"permissions": req.Permissions}),
		})
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionUpdateRolePermissions, roleID.String())
	return s.GetRole(ctx, id)
}

func (s *roleService) replacePermissions(ctx context.Context, role *model.Role, refs []string) error {
	permIDs, err := resolvePermissions(ctx, s.permRepo, refs)
	if err != nil {
		return err
	}
	if err := s.roleRepo.ReplacePermissions(ctx, role.ID, permIDs); err != nil {
		return fmt.Errorf("failed to replace permissions: %w", err)
	}
	return nil
}

func (s *roleService) revokeHolders(ctx context.Context, roleID uuid.UUID) error {
	holders, err := s.userRepo.IDsByRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to fetch role holders: %w", err)
	}
	return revoke(ctx, s.revoker, holders)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := parseID(id, "role")
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByID(txCtx, roleID)
		if err != nil {
			return storeErr(err, "role")
		}
		if err := s.revokeHolders(txCtx, role.ID); err != nil {
			return err
		}
		if err := s.roleRepo.Delete(txCtx, role.ID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionDeleteRole,
			EntityID:   role.ID.String(),
			EntityName: role.Name,
		})
	})
	if err != nil {
		return err
	}

	notify(ctx, s.notifier, model.ActionDeleteRole, roleID.String())
	return nil
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format(timeLayout),
		UpdatedAt:   r.UpdatedAt.Format(timeLayout),
	}
}

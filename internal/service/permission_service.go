package service

import (
	"context"
	"errors"
	"fmt"

	"navconsole/internal/model"
	"navconsole/internal/repository"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreatePermissionRequest struct {
	Name        string               `json:"name" validate:"required,min=1,max=100"`
	Code        string               `json:"code" validate:"required,min=1,max=300"`
	Type        model.PermissionType `json:"type" validate:"required,oneof=module page api button"`
	Description string               `json:"description" validate:"max=1000"`
}

type UpdatePermissionRequest struct {
	Name        *string               `json:"name" validate:"omitempty,min=1,max=100"`
	Code        *string               `json:"code" validate:"omitempty,min=1,max=300"`
	Type        *model.PermissionType `json:"type" validate:"omitempty,oneof=module page api button"`
	Description *string               `json:"description" validate:"omitempty,max=1000"`
}

type PermissionResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Code        string               `json:"code"`
	Type        model.PermissionType `json:"type"`
	Description string               `json:"description"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

type PermissionService interface {
	CreatePermission(ctx context.Context, req CreatePermissionRequest) (*PermissionResponse, error)
	GetPermission(ctx context.Context, id string) (*PermissionResponse, error)
	ListPermissions(ctx context.Context, filter repository.PermissionFilter, page pagination.Params) ([]PermissionResponse, int64, error)
	UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest) (*PermissionResponse, error)
	DeletePermission(ctx context.Context, id string) error
}

type permissionService struct {
	permRepo  repository.PermissionRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	notifier  ChangeNotifier
}

func NewPermissionService(
	permRepo repository.PermissionRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier ChangeNotifier,
) PermissionService {
	return &permissionService{
		permRepo:  permRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		notifier:  notifier,
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Code:        p.Code,
		Type:        p.Type,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.Format(timeLayout),
		UpdatedAt:   p.UpdatedAt.Format(timeLayout),
	}
}

func (s *permissionService) checkConflict(ctx context.Context, name, code string, excludeID uuid.UUID) error {
	existing, err := s.permRepo.FindConflict(ctx, name, code, excludeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check permission uniqueness: %w", err)
	}
	if name != "" && existing.Name == name {
		return fmt.Errorf("%w: permission name %q already exists", ErrConflict, name)
	}
	return fmt.Errorf("%w: permission code %q already exists", ErrConflict, code)
}

func (s *permissionService) CreatePermission(ctx context.Context, req CreatePermissionRequest) (*PermissionResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, req.Name, req.Code, uuid.Nil); err != nil {
		return nil, err
	}

	perm := &model.Permission{
		Name:        req.Name,
		Code:        req.Code,
		Type:        req.Type,
		Description: req.Description,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.permRepo.Create(txCtx, perm); err != nil {
			return storeErr(err, "permission")
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionCreatePermission,
			EntityID:   perm.ID.String(),
			EntityName: perm.Code,
			Details:    auditDetails(map[string]interface{}{"name": perm.Name, "type": perm.Type}),
		})
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionCreatePermission, perm.ID.String())
	resp := toPermissionResponse(*perm)
	return &resp, nil
}

func (s *permissionService) GetPermission(ctx context.Context, id string) (*PermissionResponse, error) {
	permID, err := parseID(id, "permission")
	if err != nil {
		return nil, err
	}
	perm, err := s.permRepo.FindByID(ctx, permID)
	if err != nil {
		return nil, storeErr(err, "permission")
	}
	resp := toPermissionResponse(*perm)
	return &resp, nil
}

func (s *permissionService) ListPermissions(ctx context.Context, filter repository.PermissionFilter, page pagination.Params) ([]PermissionResponse, int64, error) {
	perms, total, err := s.permRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, total, nil
}

func (s *permissionService) UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest) (*PermissionResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	permID, err := parseID(id, "permission")
	if err != nil {
		return nil, err
	}

	var perm *model.Permission
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		perm, err = s.permRepo.FindByID(txCtx, permID)
		if err != nil {
			return storeErr(err, "permission")
		}

		name, code := "", ""
		if req.Name != nil && *req.Name != perm.Name {
			name = *req.Name
		}
		if req.Code != nil && *req.Code != perm.Code {
			code = *req.Code
		}
		if name != "" || code != "" {
			if err := s.checkConflict(txCtx, name, code, perm.ID); err != nil {
				return err
			}
		}

		var changed []string
		if name != "" {
			perm.Name = name
			changed = append(changed, "name")
		}
		if code != "" {
			perm.Code = code
			changed = append(changed, "code")
		}
		if req.Type != nil && *req.Type != perm.Type {
			perm.Type = *req.Type
			changed = append(changed, "type")
		}
		if req.Description != nil {
			perm.Description = *req.Description
			changed = append(changed, "description")
		}

		if err := s.permRepo.Update(txCtx, perm); err != nil {
			return storeErr(err, "permission")
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionUpdatePermission,
			EntityID:   perm.ID.String(),
			EntityName: perm.Code,
			Details:    auditDetails(map[string]interface{}{"changed": changed}),
		})
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, model.ActionUpdatePermission, permID.String())
	resp := toPermissionResponse(*perm)
	return &resp, nil
}

func (s *permissionService) DeletePermission(ctx context.Context, id string) error {
	permID, err := parseID(id, "permission")
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		perm, err := s.permRepo.FindByID(txCtx, permID)
		if err != nil {
			return storeErr(err, "permission")
		}
		if err := s.permRepo.Delete(txCtx, perm.ID); err != nil {
			return fmt.Errorf("failed to delete permission: %w", err)
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     ActorFrom(txCtx),
			Action:     model.ActionDeletePermission,
			EntityID:   perm.ID.String(),
			EntityName: perm.Code,
		})
	})
	if err != nil {
		return err
	}

	notify(ctx, s.notifier, model.ActionDeletePermission, permID.String())
	return nil
}

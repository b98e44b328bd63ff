package repository

import (
	"context"

	"navconsole/internal/model"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionFilter narrows ListPermissions. Zero values are ignored.
type PermissionFilter struct {
	Name string
	Code string
	Type model.PermissionType
}

type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	Update(ctx context.Context, perm *model.Permission) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindByCode(ctx context.Context, code string) (*model.Permission, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error)
	FindByCodes(ctx context.Context, codes []string) ([]model.Permission, error)
	FindConflict(ctx context.Context, name, code string, excludeID uuid.UUID) (*model.Permission, error)
	List(ctx context.Context, filter PermissionFilter, page pagination.Params) ([]model.Permission, int64, error)
	RoleIDs(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(perm).Error
}

func (r *permissionRepository) Update(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(perm).Error
}

// Delete removes the permission and its role links.
func (r *permissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("permission_id = ?", id).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Permission{}).Error
}

func (r *permissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByCode(ctx context.Context, code string) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&perm).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&perms).Error
	return perms, err
}

func (r *permissionRepository) FindByCodes(ctx context.Context, codes []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(codes) == 0 {
		return perms, nil
	}
	err := GetDB(ctx, r.db).Where("code IN ?", codes).Find(&perms).Error
	return perms, err
}

// FindConflict returns any permission other than excludeID holding the name or the code.
func (r *permissionRepository) FindConflict(ctx context.Context, name, code string, excludeID uuid.UUID) (*model.Permission, error) {
	query := GetDB(ctx, r.db).Model(&model.Permission{})
	switch {
	case name != "" && code != "":
		query = query.Where("name = ? OR code = ?", name, code)
	case name != "":
		query = query.Where("name = ?", name)
	case code != "":
		query = query.Where("code = ?", code)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}

	var perm model.Permission
	if err := query.First(&perm).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) List(ctx context.Context, filter PermissionFilter, page pagination.Params) ([]model.Permission, int64, error) {
	var perms []model.Permission
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Permission{})
	if filter.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(filter.Name))
	}
	if filter.Code != "" {
		query = query.Where("LOWER(code) LIKE ?", likePattern(filter.Code))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.PageSize).Find(&perms).Error; err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func (r *permissionRepository) RoleIDs(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.RolePermission{}).Where("permission_id = ?", permissionID).Pluck("role_id", &ids).Error
	return ids, err
}

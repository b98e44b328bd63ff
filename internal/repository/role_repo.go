package repository

import (
	"context"

	"navconsole/internal/model"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleFilter narrows ListRoles. Zero values are ignored.
type RoleFilter struct {
	Name   string
	Status *model.Status
}

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error)
	FindByNames(ctx context.Context, names []string) ([]model.Role, error)
	FindConflict(ctx context.Context, name string, excludeID uuid.UUID) (*model.Role, error)
	List(ctx context.Context, filter RoleFilter, page pagination.Params) ([]model.Role, int64, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Role, error)
	LoadPermissions(ctx context.Context, roles []model.Role) error
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(role).Error
}

// Delete removes the role together with its user and permission links.
func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", id).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	if err := db.Where("role_id = ?", id).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	if len(ids) == 0 {
		return roles, nil
	}
	err := GetDB(ctx, r.db).Where("id IN ?", ids).Order("created_at ASC").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) FindByNames(ctx context.Context, names []string) ([]model.Role, error) {
	var roles []model.Role
	if len(names) == 0 {
		return roles, nil
	}
	err := GetDB(ctx, r.db).Where("name IN ?", names).Order("created_at ASC").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) FindConflict(ctx context.Context, name string, excludeID uuid.UUID) (*model.Role, error) {
	query := GetDB(ctx, r.db).Where("name = ?", name)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var role model.Role
	if err := query.First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, filter RoleFilter, page pagination.Params) ([]model.Role, int64, error) {
	var roles []model.Role
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Role{})
	if filter.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(filter.Name))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.PageSize).Find(&roles).Error; err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// ListByUserID returns every role linked to the user, active or not.
func (r *roleRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.created_at ASC").
		Find(&roles).Error
	return roles, err
}

// LoadPermissions fills Permissions on each role with two queries regardless of len(roles).
func (r *roleRepository) LoadPermissions(ctx context.Context, roles []model.Role) error {
	if len(roles) == 0 {
		return nil
	}
	db := GetDB(ctx, r.db)

	roleIDs := make([]uuid.UUID, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	var links []model.RolePermission
	if err := db.Where("role_id IN ?", roleIDs).Order("created_at ASC").Find(&links).Error; err != nil {
		return err
	}

	permIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		permIDs = append(permIDs, link.PermissionID)
	}
	permIDs = uniqueIDs(permIDs)

	byID := make(map[uuid.UUID]model.Permission, len(permIDs))
	if len(permIDs) > 0 {
		var perms []model.Permission
		if err := db.Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
			return err
		}
		for _, p := range perms {
			byID[p.ID] = p
		}
	}

	grouped := make(map[uuid.UUID][]model.Permission, len(roles))
	for _, link := range links {
		if p, ok := byID[link.PermissionID]; ok {
			grouped[link.RoleID] = append(grouped[link.RoleID], p)
		}
	}
	for i := range roles {
		roles[i].Permissions = grouped[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []model.Permission{}
		}
	}
	return nil
}

// ReplacePermissions deletes every permission link of the role and inserts permissionIDs.
func (r *roleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	ids := uniqueIDs(permissionIDs)
	if len(ids) == 0 {
		return nil
	}
	links := make([]model.RolePermission, 0, len(ids))
	for _, id := range ids {
		links = append(links, model.RolePermission{RoleID: roleID, PermissionID: id})
	}
	return db.Omit(clause.Associations).Create(&links).Error
}

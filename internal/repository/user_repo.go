package repository

import (
	"context"

	"navconsole/internal/model"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserFilter narrows ListUsers. Zero values are ignored.
type UserFilter struct {
	Account string
	Email   string
	Status  *model.Status
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByAccount(ctx context.Context, account string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	FindConflict(ctx context.Context, account, email string, excludeID uuid.UUID) (*model.User, error)
	List(ctx context.Context, filter UserFilter, page pagination.Params) ([]model.User, int64, error)
	ReplaceRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	RoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IDsByRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(user).Error
}

// Delete removes the user and its role links. The links also cascade at the schema level.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", id).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByAccount(ctx context.Context, account string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "account = ?", account).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// FindConflict returns any user other than excludeID holding the account or the email.
func (r *userRepository) FindConflict(ctx context.Context, account, email string, excludeID uuid.UUID) (*model.User, error) {
	query := GetDB(ctx, r.db).Model(&model.User{})
	switch {
	case account != "" && email != "":
		query = query.Where("account = ? OR email = ?", account, email)
	case account != "":
		query = query.Where("account = ?", account)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}

	var user model.User
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, page pagination.Params) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := GetDB(ctx, r.db).Model(&model.User{})
	if filter.Account != "" {
		query = query.Where("LOWER(account) LIKE ?", likePattern(filter.Account))
	}
	if filter.Email != "" {
		query = query.Where("LOWER(email) LIKE ?", likePattern(filter.Email))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.PageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ReplaceRoles deletes every role link of the user and inserts roleIDs.
// Callers run it inside a transaction so the set is never observed half-written.
func (r *userRepository) ReplaceRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	ids := uniqueIDs(roleIDs)
	if len(ids) == 0 {
		return nil
	}
	links := make([]model.UserRole, 0, len(ids))
	for _, id := range ids {
		links = append(links, model.UserRole{UserID: userID, RoleID: id})
	}
	return db.Omit(clause.Associations).Create(&links).Error
}

func (r *userRepository) RoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.UserRole{}).Where("user_id = ?", userID).Pluck("role_id", &ids).Error
	return ids, err
}

func (r *userRepository) IDsByRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.UserRole{}).Where("role_id = ?", roleID).Pluck("user_id", &ids).Error
	return ids, err
}

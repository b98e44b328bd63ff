package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role groups permissions and is granted to users
type Role struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Status      Status    `gorm:"not null;default:1;index" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Permissions is populated by the repository on demand; it is not a gorm association.
	Permissions []Permission `gorm:"-" json:"permissions,omitempty"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the role currently grants its permissions.
func (r *Role) IsActive() bool {
	return r.Status == StatusActive
}

// RolePermission links a role to a permission. Both sides cascade on delete.
type RolePermission struct {
	RoleID       uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"role_id"`
	PermissionID uuid.UUID  `gorm:"type:varchar(36);primaryKey;index" json:"permission_id"`
	Role         Role       `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Permission   Permission `gorm:"foreignKey:PermissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

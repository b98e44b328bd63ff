package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionLogin  = "LOGIN"
	ActionLogout = "LOGOUT"

	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"

	ActionCreateRole            = "CREATE_ROLE"
	ActionUpdateRole            = "UPDATE_ROLE"
	ActionUpdateRolePermissions = "UPDATE_ROLE_PERMISSIONS"
	ActionDeleteRole            = "DELETE_ROLE"

	ActionCreatePermission = "CREATE_PERMISSION"
	ActionUpdatePermission = "UPDATE_PERMISSION"
	ActionDeletePermission = "DELETE_PERMISSION"
)

// AuditLog tracks who changed what, and when
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:varchar(36);index" json:"user_id"` // nil for system actions such as seeding
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // JSON payload
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

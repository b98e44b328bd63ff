package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionType classifies where a permission applies. The gate ignores it.
type PermissionType string

const (
	PermissionTypeModule PermissionType = "module"
	PermissionTypePage   PermissionType = "page"
	PermissionTypeAPI    PermissionType = "api"
	PermissionTypeButton PermissionType = "button"
)

// Permission is a single grantable capability. Code is the key compared at request time.
type Permission struct {
	ID          uuid.UUID      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Code        string         `gorm:"type:varchar(300);uniqueIndex;not null" json:"code"` // e.g. "user:read"
	Type        PermissionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

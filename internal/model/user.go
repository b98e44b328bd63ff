package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is shared by users and roles.
type Status int8

const (
	StatusActive   Status = 1
	StatusDisabled Status = 2
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDisabled
}

// User represents an administrator account
type User struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Account   string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"account"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"` // bcrypt digest, never serialized
	Avatar    string    `gorm:"type:varchar(500)" json:"avatar"`
	Status    Status    `gorm:"not null;default:1;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Roles is populated by the repository on demand; it is not a gorm association.
	Roles []Role `gorm:"-" json:"roles,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// UserRole links a user to a role. Both sides cascade on delete.
type UserRole struct {
	UserID    uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	RoleID    uuid.UUID `gorm:"type:varchar(36);primaryKey;index" json:"role_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Role      Role      `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

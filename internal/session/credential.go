package session

import (
	"time"

	"navconsole/internal/model"

	"github.com/google/uuid"
)

// RoleRef is the role projection carried inside a credential.
type RoleRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PermissionRef is the permission projection carried inside a credential.
type PermissionRef struct {
	ID   uuid.UUID            `json:"id"`
	Code string               `json:"code"`
	Type model.PermissionType `json:"type"`
}

// Credential is a verified session snapshot. It never changes after issuance;
// role or permission edits only show up in credentials issued afterwards.
type Credential struct {
	UserID      uuid.UUID       `json:"user_id"`
	Account     string          `json:"account"`
	Roles       []RoleRef       `json:"roles"`
	Permissions []PermissionRef `json:"permissions"`
	TokenID     string          `json:"token_id"`
	IssuedAt    time.Time       `json:"issued_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// HasPermission reports whether code is in the snapshot. Permission type is ignored.
func (c *Credential) HasPermission(code string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p.Code == code {
			return true
		}
	}
	return false
}

// PermissionCodes returns the codes in snapshot order.
func (c *Credential) PermissionCodes() []string {
	codes := make([]string, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

// Flatten projects roles into credential form. Disabled roles contribute nothing, and a
// permission reachable through several roles appears once, at its first position.
func Flatten(roles []model.Role) ([]RoleRef, []PermissionRef) {
	roleRefs := make([]RoleRef, 0, len(roles))
	permRefs := make([]PermissionRef, 0)
	seen := make(map[uuid.UUID]struct{})

	for _, role := range roles {
		if !role.IsActive() {
			continue
		}
		roleRefs = append(roleRefs, RoleRef{ID: role.ID, Name: role.Name})
		for _, p := range role.Permissions {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			permRefs = append(permRefs, PermissionRef{ID: p.ID, Code: p.Code, Type: p.Type})
		}
	}
	return roleRefs, permRefs
}

package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleGuest      Role = "GUEST"
	RoleStaff      Role = "STAFF"
	RoleOwner      Role = "OWNER"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleGuest, RoleStaff, RoleOwner, RoleSuperAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Actor is whoever invokes a command. BusinessID is set for STAFF and OWNER
// and scopes what they may touch.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	BusinessID string `json:"businessId,omitempty"`
}

// SystemActor is used by scheduled jobs such as the no-show sweep.
func SystemActor(name string) Actor {
	return Actor{ID: "system:" + name, Name: name, Role: RoleSuperAdmin}
}

// Package models defines server-side data models persisted in the database.
package models

import "github.com/dmitrijs2005/smartwaste/internal/common"

// Role is the closed set of principal classes an account can belong to.
type Role string

const (
	RoleEndUser Role = "end_user"
	RoleBuyer   Role = "buyer"
	RoleAdmin   Role = "admin"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleEndUser, RoleBuyer, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEndUser, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether accounts of this role may sign up on
// their own. Admins are created by an operator.
func (r Role) SelfRegistrable() bool {
	return r == RoleEndUser || r == RoleBuyer
}

// ParseRole converts s into a Role or returns common.ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", common.ErrInvalidRole
	}
	return r, nil
}

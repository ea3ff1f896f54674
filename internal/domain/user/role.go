package user

import (
	"errors"
	"slices"
	"strings"
)

// Role is an account role as returned by the credential exchange.
type Role string

const (
	RoleDriver    Role = "driver"
	RoleLivreur   Role = "livreur"
	RoleRequester Role = "requester"
	RoleSupplier  Role = "supplier"
	RoleAdmin     Role = "admin"
)

// DriverRoles is the set of roles allowed to use the driver client.
var DriverRoles = []Role{RoleDriver, RoleLivreur}

var (
	ErrInvalidRole   = errors.New("invalid role")
	ErrRoleForbidden = errors.New("role not allowed")
)

// ParseRole normalizes (lowercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the known role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleDriver, RoleLivreur, RoleRequester, RoleSupplier, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// IsDriver reports whether role belongs to DriverRoles. Matching is case-insensitive
// because the backend has shipped both casings.
func (role Role) IsDriver() bool {
	return slices.Contains(DriverRoles, Role(strings.ToLower(strings.TrimSpace(string(role)))))
}

// RequireDriver returns ErrRoleForbidden unless role is a driver-equivalent role.
func RequireDriver(role Role) error {
	if role.IsDriver() {
		return nil
	}
	return ErrRoleForbidden
}

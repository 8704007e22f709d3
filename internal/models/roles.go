package models

import "fmt"

// Role is the closed set of user roles. Every boundary (request body, token
// claims, stored documents) goes through ParseRole so a mistyped or
// differently-cased role can never silently fail an authorization check.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
)

// ParseRole validates a raw role string against the canonical serialization.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleSuperadmin, RoleManager, RoleTechnician:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

func (r Role) String() string {
	return string(r)
}

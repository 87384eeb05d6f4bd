// Package sentinel holds the core identity and route-authorization types for
// a multi-tenant operations dashboard: tenant-user and platform-admin
// principals, tenant roles, and per-route requirements consumed by the guard.
package sentinel

import (
	"fmt"
	"strings"
)

// Role is a tenant-user role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Roles lists every known tenant role.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// ParseRole normalizes and validates a role string.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role: %q", value)
	}
}

// AdminPrincipal is a platform operator identity resolved from a bearer token.
// It implies nothing about tenant identity.
type AdminPrincipal struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

// UserPrincipal is a tenant end-user identity resolved from the ambient
// session. It implies nothing about admin identity.
type UserPrincipal struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organizationId"`
}

// HasRole reports whether the principal holds the given role.
func (p *UserPrincipal) HasRole(role Role) bool {
	return p != nil && p.Role == role
}

// HasAnyRole reports whether the principal holds any of the provided roles.
func (p *UserPrincipal) HasAnyRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

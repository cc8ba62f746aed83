// Package org provides organisation management for Fusion Bridge Core.
//
// Organisations are the multi-tenancy boundary: every connector, device,
// event, automation and location belongs to exactly one organisation, and
// repositories scope all queries by organisation ID.
package org

import "time"

// Organization represents a tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User represents an authenticated user within an organisation.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Role defines a user's permission level within their organisation.
type Role string

const (
	// RoleAdmin can manage connectors across organisations and trigger
	// administrative operations.
	RoleAdmin Role = "admin"

	// RoleMember can view and operate resources within their own
	// organisation.
	RoleMember Role = "member"
)

// IsValid reports whether the role is a known value.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

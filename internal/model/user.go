package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the fixed role enumeration. Permission checks are always
// role -> capability lookups, never string comparisons at call sites.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleStaff        Role = "staff"
	RoleClient       Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessional, RoleStaff, RoleClient:
		return true
	}
	return false
}

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// User represents a system user. RevocationMarker rotates on logout and
// invalidates every token issued before the rotation.
type User struct {
	Base
	OrganizationID   uuid.UUID `json:"organization_id" db:"organization_id"`
	Email            string    `json:"email" db:"email"`
	Name             string    `json:"name" db:"name"`
	Password         string    `json:"password,omitempty" db:"-"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             Role      `json:"role" db:"role"`
	Status           string    `json:"status" db:"status"`
	RevocationMarker string    `json:"-" db:"revocation_marker"`
	ExternalSubject  *string   `json:"-" db:"external_subject"`
	LoginAttempts    int       `json:"-" db:"login_attempts"`
	LastLoginAttempt time.Time `json:"-" db:"last_login_attempt"`
	Settings         JSONMap   `json:"settings" db:"settings"`
}

// TenantID identifies the owning organization for scoping.
func (u *User) TenantID() uuid.UUID {
	return u.OrganizationID
}

// OwnerID makes a user record its own owner.
func (u *User) OwnerID() uuid.UUID {
	return u.ID
}

// UserFilter represents user search parameters. OrganizationID is always
// set by the authorization scope, never by the caller.
type UserFilter struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
	Status         string    `json:"status"`
	SearchTerm     string    `json:"search_term"`
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=admin professional staff client"`
	Status   *string `json:"status" binding:"omitempty,oneof=active inactive locked"`
	Settings JSONMap `json:"settings"`
}

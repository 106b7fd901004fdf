package model

import "github.com/google/uuid"

// Principal is the authenticated actor bound to its resolved tenant.
// It is request-scoped, never persisted, and rebuilt on every operation.
type Principal struct {
	User         *User
	Organization *Organization
}

func (p *Principal) UserID() uuid.UUID {
	return p.User.ID
}

func (p *Principal) OrganizationID() uuid.UUID {
	return p.Organization.ID
}

func (p *Principal) Role() Role {
	return p.User.Role
}

// Equal compares principals by (user id, organization id).
func (p *Principal) Equal(other *Principal) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.UserID() == other.UserID() && p.OrganizationID() == other.OrganizationID()
}

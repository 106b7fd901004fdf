package model

import "github.com/google/uuid"

// Organization is the tenant boundary. Every business entity carries
// exactly one organization id, set at creation and never reassigned.
type Organization struct {
	Base
	Name      string  `db:"name" json:"name"`
	Subdomain string  `db:"subdomain" json:"subdomain"`
	Active    bool    `db:"active" json:"active"`
	Settings  JSONMap `db:"settings" json:"settings"`
}

// TenantID makes the organization its own tenant boundary.
func (o *Organization) TenantID() uuid.UUID {
	return o.ID
}

type UpdateOrganizationRequest struct {
	Name     *string `json:"name"`
	Active   *bool   `json:"active"`
	Settings JSONMap `json:"settings"`
}

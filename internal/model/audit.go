package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records a security-relevant action. Writes are best effort
// and never fail the operation that produced them.
type AuditLog struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	ActorID        uuid.UUID `db:"actor_id" json:"actor_id"`
	Action         string    `db:"action" json:"action"`
	EntityType     string    `db:"entity_type" json:"entity_type"`
	EntityID       uuid.UUID `db:"entity_id" json:"entity_id"`
	Metadata       JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

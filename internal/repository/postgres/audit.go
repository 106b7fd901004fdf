package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, organization_id, actor_id, action, entity_type, entity_id,
			metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Metadata,
		entry.CreatedAt,
	)
	return wrapErr("create audit log", err)
}

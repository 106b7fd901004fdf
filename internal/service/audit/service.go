package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/pkg/logger"
)

// Service records security-relevant actions. Writes are best effort:
// a failed audit write is logged and never fails the caller.
type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// LogOptions carries optional metadata for an audit entry.
type LogOptions struct {
	Metadata model.JSONMap
}

func (s *Service) Log(ctx context.Context, actorID, orgID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	entry := &model.AuditLog{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
	}
	if opts != nil {
		entry.Metadata = opts.Metadata
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"action", action, "entity_type", entityType)
	}
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	OrganizationRepository interface {
		Create(ctx context.Context, org *model.Organization) error
		Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
		GetBySubdomain(ctx context.Context, subdomain string) (*model.Organization, error)
		Update(ctx context.Context, org *model.Organization) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*model.User, error)
		GetByExternalSubject(ctx context.Context, subject string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		RotateRevocationMarker(ctx context.Context, userID uuid.UUID, marker string) error
		List(ctx context.Context, scope authz.Scope, filter *model.UserFilter) ([]*model.User, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, scope authz.Scope, filter *model.AppointmentFilter) ([]*model.Appointment, error)
		// TransitionState persists appt only if the stored status still
		// equals from; a stale status yields a Conflict error.
		TransitionState(ctx context.Context, appt *model.Appointment, from model.AppointmentStatus) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	}

	DeadlineRepository interface {
		Create(ctx context.Context, deadline *model.Deadline) error
		GetDueWithLock(ctx context.Context, now time.Time, limit int) ([]*model.Deadline, error)
		MarkDone(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) error
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditLog) error
	}
)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentColumns = `
	id, organization_id, professional_id, client_id, student_id,
	scheduled_at, duration, status, notes, price_cents, credits_used,
	pre_confirmed_at, confirmed_at, executed_at, cancelled_at,
	cancelled_by, cancel_reason, created_at, updated_at, deleted_at
`

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, organization_id, professional_id, client_id, student_id,
			scheduled_at, duration, status, notes, price_cents, credits_used,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	appt.ID = uuid.New()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appt.ID,
		appt.OrganizationID,
		appt.ProfessionalID,
		appt.ClientID,
		appt.StudentID,
		appt.ScheduledAt,
		appt.Duration,
		appt.Status,
		appt.Notes,
		appt.PriceCents,
		appt.CreditsUsed,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	return wrapErr("create appointment", err)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND deleted_at IS NULL`

	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, wrapErr("get appointment", err)
	}
	return &appt, nil
}

// TransitionState is the serialization point for concurrent transitions
// on the same appointment: the status predicate makes the update a
// compare-and-set, so only one of two racing transitions can win.
func (r *appointmentRepository) TransitionState(ctx context.Context, appt *model.Appointment, from model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, notes = $2,
			pre_confirmed_at = $3, confirmed_at = $4, executed_at = $5,
			cancelled_at = $6, cancelled_by = $7, cancel_reason = $8,
			updated_at = $9
		WHERE id = $10 AND status = $11 AND deleted_at IS NULL
	`
	appt.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appt.Status,
		appt.Notes,
		appt.PreConfirmedAt,
		appt.ConfirmedAt,
		appt.ExecutedAt,
		appt.CancelledAt,
		appt.CancelledBy,
		appt.CancelReason,
		appt.UpdatedAt,
		appt.ID,
		from,
	)
	if err != nil {
		return wrapErr("transition appointment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr("transition appointment", err)
	}
	if rows == 0 {
		return apperror.New(apperror.KindConflict, "appointment state changed concurrently")
	}
	return nil
}

// List applies the authorization scope before any caller filter; the
// organization predicate is not optional.
func (r *appointmentRepository) List(ctx context.Context, scope authz.Scope, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE organization_id = $1 AND deleted_at IS NULL`
	args := []interface{}{scope.OrganizationID}
	argCount := 2

	if scope.ProfessionalID != nil {
		query += fmt.Sprintf(" AND professional_id = $%d", argCount)
		args = append(args, *scope.ProfessionalID)
		argCount++
	}
	if scope.OwnerID != nil {
		query += fmt.Sprintf(" AND client_id = $%d", argCount)
		args = append(args, *scope.OwnerID)
		argCount++
	}

	if filter != nil {
		if filter.ProfessionalID != nil {
			query += fmt.Sprintf(" AND professional_id = $%d", argCount)
			args = append(args, *filter.ProfessionalID)
			argCount++
		}
		if filter.ClientID != nil {
			query += fmt.Sprintf(" AND client_id = $%d", argCount)
			args = append(args, *filter.ClientID)
			argCount++
		}
		if filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filter.Status)
			argCount++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
			args = append(args, filter.From)
			argCount++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at < $%d", argCount)
			args = append(args, filter.To)
			argCount++
		}
	}

	query += " ORDER BY scheduled_at ASC"

	var appts []*model.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, wrapErr("list appointments", err)
	}
	return appts, nil
}

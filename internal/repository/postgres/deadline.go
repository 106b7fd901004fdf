package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
)

type deadlineRepository struct {
	BaseRepository
}

func NewDeadlineRepository(base BaseRepository) repository.DeadlineRepository {
	return &deadlineRepository{base}
}

func (r *deadlineRepository) Create(ctx context.Context, deadline *model.Deadline) error {
	query := `
		INSERT INTO appointment_deadlines (
			id, appointment_id, due_at, status, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	deadline.ID = uuid.New()
	deadline.Status = model.DeadlineStatusPending
	deadline.CreatedAt = time.Now()
	deadline.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		deadline.ID,
		deadline.AppointmentID,
		deadline.DueAt,
		deadline.Status,
		deadline.Attempts,
		deadline.CreatedAt,
		deadline.UpdatedAt,
	)
	return wrapErr("create deadline", err)
}

// GetDueWithLock claims due deadlines. SKIP LOCKED serializes workers;
// duplicate entries for one appointment are fine because the handler is
// idempotent.
func (r *deadlineRepository) GetDueWithLock(ctx context.Context, now time.Time, limit int) ([]*model.Deadline, error) {
	query := `
		SELECT id, appointment_id, due_at, status, attempts, last_error,
			   created_at, updated_at
		FROM appointment_deadlines
		WHERE status = $1 AND due_at <= $2
		ORDER BY due_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	var deadlines []*model.Deadline
	if err := r.db.SelectContext(ctx, &deadlines, query, model.DeadlineStatusPending, now, limit); err != nil {
		return nil, wrapErr("get due deadlines", err)
	}
	return deadlines, nil
}

func (r *deadlineRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE appointment_deadlines
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.DeadlineStatusDone, time.Now(), id)
	return wrapErr("mark deadline done", err)
}

func (r *deadlineRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE appointment_deadlines
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, model.DeadlineStatusFailed, errMsg, time.Now(), id)
	return wrapErr("mark deadline failed", err)
}

func (r *deadlineRepository) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE appointment_deadlines
		SET attempts = attempts + 1, last_error = $1, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, time.Now(), id)
	return wrapErr("record deadline attempt", err)
}

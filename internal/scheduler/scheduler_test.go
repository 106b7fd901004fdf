package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/pkg/logger"
	"github.com/practicedesk/booking-api/pkg/metrics"
)

// One registry per test binary; prometheus collectors register globally.
var testMetrics = metrics.New("scheduler_test")

type fakeDeadlineRepo struct {
	created  []*model.Deadline
	due      []*model.Deadline
	done     []uuid.UUID
	failed   []uuid.UUID
	attempts int
}

func (r *fakeDeadlineRepo) Create(ctx context.Context, deadline *model.Deadline) error {
	if deadline.ID == uuid.Nil {
		deadline.ID = uuid.New()
	}
	r.created = append(r.created, deadline)
	return nil
}

func (r *fakeDeadlineRepo) GetDueWithLock(ctx context.Context, now time.Time, limit int) ([]*model.Deadline, error) {
	due := r.due
	r.due = nil
	return due, nil
}

func (r *fakeDeadlineRepo) MarkDone(ctx context.Context, id uuid.UUID) error {
	r.done = append(r.done, id)
	return nil
}

func (r *fakeDeadlineRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeDeadlineRepo) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) error {
	r.attempts++
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func TestScheduleAt(t *testing.T) {
	repo := &fakeDeadlineRepo{}
	s := NewScheduler(repo)

	apptID := uuid.New()
	due := time.Now().Add(24 * time.Hour)
	require.NoError(t, s.ScheduleAt(context.Background(), due, apptID))

	require.Len(t, repo.created, 1)
	assert.Equal(t, apptID, repo.created[0].AppointmentID)
	assert.Equal(t, due, repo.created[0].DueAt)
}

func TestProcessDueSuccess(t *testing.T) {
	deadline := &model.Deadline{AppointmentID: uuid.New()}
	deadline.ID = uuid.New()
	repo := &fakeDeadlineRepo{due: []*model.Deadline{deadline}}

	var handled []uuid.UUID
	p := NewProcessor(repo, func(ctx context.Context, appointmentID uuid.UUID) error {
		handled = append(handled, appointmentID)
		return nil
	}, ProcessorConfig{RetryAttempts: 3, RetryDelay: time.Millisecond}, testLogger(), testMetrics)

	require.NoError(t, p.processDue(context.Background()))

	assert.Equal(t, []uuid.UUID{deadline.AppointmentID}, handled)
	assert.Equal(t, []uuid.UUID{deadline.ID}, repo.done)
	assert.Empty(t, repo.failed)
}

func TestProcessDueRetriesThenSucceeds(t *testing.T) {
	deadline := &model.Deadline{AppointmentID: uuid.New()}
	deadline.ID = uuid.New()
	repo := &fakeDeadlineRepo{due: []*model.Deadline{deadline}}

	calls := 0
	p := NewProcessor(repo, func(ctx context.Context, appointmentID uuid.UUID) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, ProcessorConfig{RetryAttempts: 3, RetryDelay: time.Millisecond}, testLogger(), testMetrics)

	require.NoError(t, p.processDue(context.Background()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, repo.attempts)
	assert.Equal(t, []uuid.UUID{deadline.ID}, repo.done)
	assert.Empty(t, repo.failed)
}

func TestProcessDueExhaustsRetries(t *testing.T) {
	deadline := &model.Deadline{AppointmentID: uuid.New()}
	deadline.ID = uuid.New()
	repo := &fakeDeadlineRepo{due: []*model.Deadline{deadline}}

	calls := 0
	p := NewProcessor(repo, func(ctx context.Context, appointmentID uuid.UUID) error {
		calls++
		return errors.New("permanent")
	}, ProcessorConfig{RetryAttempts: 3, RetryDelay: time.Millisecond}, testLogger(), testMetrics)

	require.NoError(t, p.processDue(context.Background()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, []uuid.UUID{deadline.ID}, repo.failed)
	assert.Empty(t, repo.done)
}

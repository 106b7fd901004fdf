// Package scheduler drives time-triggered re-examination of
// appointments. Deadlines are stored in postgres and claimed in batches
// by the worker; the handler itself is supplied by the appointment
// state machine and is idempotent.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/pkg/logger"
	"github.com/practicedesk/booking-api/pkg/metrics"
)

// Handler is invoked at or after each deadline's due time.
type Handler func(ctx context.Context, appointmentID uuid.UUID) error

// Scheduler persists deadlines. It satisfies the state machine's
// DeadlineScheduler contract.
type Scheduler struct {
	repo repository.DeadlineRepository
}

func NewScheduler(repo repository.DeadlineRepository) *Scheduler {
	return &Scheduler{repo: repo}
}

// ScheduleAt records a deadline check. A later reschedule supersedes an
// earlier entry without cancelling it; the handler's idempotence
// absorbs the duplicate firing.
func (s *Scheduler) ScheduleAt(ctx context.Context, dueAt time.Time, appointmentID uuid.UUID) error {
	return s.repo.Create(ctx, &model.Deadline{
		AppointmentID: appointmentID,
		DueAt:         dueAt,
	})
}

// ProcessorConfig tunes the deadline poller.
type ProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Processor polls due deadlines and runs the handler with bounded
// retries. Exhausted deadlines are marked failed and logged; they are
// never redelivered.
type Processor struct {
	repo    repository.DeadlineRepository
	handler Handler
	config  ProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewProcessor(
	repo repository.DeadlineRepository,
	handler Handler,
	config ProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	return &Processor{
		repo:    repo,
		handler: handler,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *Processor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting deadline processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down deadline processor")
			return
		case <-ticker.C:
			if err := p.processDue(ctx); err != nil {
				p.logger.Error(err, "Failed to process deadlines")
			}
		}
	}
}

func (p *Processor) processDue(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.DeadlineLatency)
	defer timer.ObserveDuration()

	deadlines, err := p.repo.GetDueWithLock(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_due_deadlines", "error").Inc()
		return fmt.Errorf("failed to get due deadlines: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_due_deadlines", "success").Inc()

	for _, deadline := range deadlines {
		p.processDeadline(ctx, deadline)
	}
	return nil
}

func (p *Processor) processDeadline(ctx context.Context, deadline *model.Deadline) {
	var err error
	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			p.metrics.DeadlineRetries.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err = p.handler(ctx, deadline.AppointmentID); err == nil {
			break
		}
		if recordErr := p.repo.RecordAttempt(ctx, deadline.ID, err.Error()); recordErr != nil {
			p.logger.Error(recordErr, "Failed to record deadline attempt",
				"deadline_id", deadline.ID.String())
		}
	}

	if err != nil {
		p.metrics.DeadlinesFailed.Inc()
		p.logger.Error(err, "Deadline handler exhausted retries",
			"deadline_id", deadline.ID.String(),
			"appointment_id", deadline.AppointmentID.String())
		if markErr := p.repo.MarkFailed(ctx, deadline.ID, err.Error()); markErr != nil {
			p.logger.Error(markErr, "Failed to mark deadline failed",
				"deadline_id", deadline.ID.String())
		}
		return
	}

	p.metrics.DeadlinesProcessed.Inc()
	if err := p.repo.MarkDone(ctx, deadline.ID); err != nil {
		p.logger.Error(err, "Failed to mark deadline done",
			"deadline_id", deadline.ID.String())
	}
}

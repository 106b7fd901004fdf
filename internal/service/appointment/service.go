package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/internal/service/event"
	"github.com/practicedesk/booking-api/pkg/apperror"
	"github.com/practicedesk/booking-api/pkg/metrics"
)

// Business rules
const (
	MinAppointmentDuration = 15 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
	PreConfirmExpiry       = 24 * time.Hour
)

// DeadlineScheduler is the contract the state machine requires from the
// background scheduler: schedule a re-examination at a timestamp.
// Duplicate scheduling is tolerated; the deadline handler is idempotent.
type DeadlineScheduler interface {
	ScheduleAt(ctx context.Context, dueAt time.Time, appointmentID uuid.UUID) error
}

type Service struct {
	repo      repository.AppointmentRepository
	engine    *authz.Engine
	emitter   event.Emitter
	scheduler DeadlineScheduler
	auditor   *audit.Service
	metrics   *metrics.Metrics
}

// NewService builds the appointment service. A nil metrics handle
// disables transition instrumentation.
func NewService(
	repo repository.AppointmentRepository,
	engine *authz.Engine,
	emitter event.Emitter,
	scheduler DeadlineScheduler,
	auditor *audit.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		emitter:   emitter,
		scheduler: scheduler,
		auditor:   auditor,
		metrics:   m,
	}
}

// Create books a new appointment in draft state. The scheduled time
// must be strictly in the future.
func (s *Service) Create(ctx context.Context, p *model.Principal, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.engine.CanAct(p, authz.ActionApptCreate); err != nil {
		return nil, err
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration < MinAppointmentDuration || duration > MaxAppointmentDuration {
		return nil, apperror.Validation(fmt.Sprintf("duration must be between %v and %v", MinAppointmentDuration, MaxAppointmentDuration))
	}
	if !req.ScheduledAt.After(time.Now()) {
		return nil, apperror.Validation("appointment cannot be scheduled in the past")
	}
	if req.ProfessionalID == uuid.Nil || req.ClientID == uuid.Nil {
		return nil, apperror.Validation("professional and client are required")
	}

	// Clients book for themselves; professionals book onto their own
	// calendar. Staff and admin may book on behalf of anyone in the
	// tenant.
	switch p.Role() {
	case model.RoleClient:
		if req.ClientID != p.UserID() {
			return nil, apperror.Forbidden("clients can only book their own sessions")
		}
	case model.RoleProfessional:
		if req.ProfessionalID != p.UserID() {
			return nil, apperror.Forbidden("professionals can only book onto their own calendar")
		}
	}

	appt := &model.Appointment{
		OrganizationID: p.OrganizationID(),
		ProfessionalID: req.ProfessionalID,
		ClientID:       req.ClientID,
		StudentID:      req.StudentID,
		ScheduledAt:    req.ScheduledAt,
		Duration:       duration,
		Status:         model.AppointmentStatusDraft,
		Notes:          req.Notes,
		PriceCents:     req.PriceCents,
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), "create", "appointment", appt.ID, nil)
	return appt, nil
}

// Get loads a single appointment. Absent ids are NotFound; records in
// another tenant or outside the caller's record policy are Forbidden.
func (s *Service) Get(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Can(p, authz.ActionApptView, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// List returns the appointments visible to the principal. The scope is
// applied in SQL before any record is materialized.
func (s *Service) List(ctx context.Context, p *model.Principal, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	scope, err := s.engine.ScopeFor(p, authz.KindAppointment)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope, filter)
}

// transition describes one edge of the lifecycle. The capability is the
// coarse gate; actorAllowed is the relationship gate evaluated against
// the loaded record and the state it is leaving.
type transition struct {
	name       string
	to         model.AppointmentStatus
	capability authz.Action
	from       map[model.AppointmentStatus]struct{}
	eventType  string
	actorAllowed func(p *model.Principal, appt *model.Appointment, from model.AppointmentStatus) bool
}

func fromStates(states ...model.AppointmentStatus) map[model.AppointmentStatus]struct{} {
	set := make(map[model.AppointmentStatus]struct{}, len(states))
	for _, st := range states {
		set[st] = struct{}{}
	}
	return set
}

var (
	transitionPreConfirm = transition{
		name:       "pre_confirm",
		to:         model.AppointmentStatusPreConfirmed,
		capability: authz.ActionApptPreConf,
		from:       fromStates(model.AppointmentStatusDraft),
		eventType:  event.TypeAppointmentPreConfirmed,
		actorAllowed: func(p *model.Principal, appt *model.Appointment, _ model.AppointmentStatus) bool {
			return p.Role() == model.RoleAdmin || p.Role() == model.RoleStaff ||
				authz.IsAssignedProfessional(p, appt)
		},
	}

	transitionConfirm = transition{
		name:       "confirm",
		to:         model.AppointmentStatusConfirmed,
		capability: authz.ActionApptConfirm,
		from:       fromStates(model.AppointmentStatusPreConfirmed),
		eventType:  event.TypeAppointmentConfirmed,
		actorAllowed: func(p *model.Principal, appt *model.Appointment, _ model.AppointmentStatus) bool {
			return p.Role() == model.RoleAdmin || p.Role() == model.RoleStaff ||
				authz.IsAssignedProfessional(p, appt) || authz.IsOwningClient(p, appt)
		},
	}

	transitionExecute = transition{
		name:       "execute",
		to:         model.AppointmentStatusExecuted,
		capability: authz.ActionApptExecute,
		from:       fromStates(model.AppointmentStatusConfirmed),
		eventType:  event.TypeAppointmentExecuted,
		actorAllowed: func(p *model.Principal, appt *model.Appointment, _ model.AppointmentStatus) bool {
			return p.Role() == model.RoleAdmin || authz.IsAssignedProfessional(p, appt)
		},
	}

	transitionCancel = transition{
		name:       "cancel",
		to:         model.AppointmentStatusCancelled,
		capability: authz.ActionApptCancel,
		from: fromStates(
			model.AppointmentStatusDraft,
			model.AppointmentStatusPreConfirmed,
			model.AppointmentStatusConfirmed,
		),
		eventType: event.TypeAppointmentCancelled,
		actorAllowed: func(p *model.Principal, appt *model.Appointment, from model.AppointmentStatus) bool {
			// Once confirmed, only staff and admin may cancel.
			if from == model.AppointmentStatusConfirmed {
				return p.Role() == model.RoleAdmin || p.Role() == model.RoleStaff
			}
			return p.Role() == model.RoleAdmin || p.Role() == model.RoleStaff ||
				authz.IsAssignedProfessional(p, appt) || authz.IsOwningClient(p, appt)
		},
	}
)

// PreConfirm moves a draft appointment to pre_confirmed and schedules
// the automatic expiry check 24 hours out.
func (s *Service) PreConfirm(ctx context.Context, p *model.Principal, id uuid.UUID, note string) (*model.Appointment, error) {
	appt, err := s.apply(ctx, p, id, transitionPreConfirm, note)
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.ScheduleAt(ctx, appt.PreConfirmedAt.Add(PreConfirmExpiry), appt.ID); err != nil {
		// The transition is committed; a scheduling failure is surfaced
		// operationally, not to the caller.
		s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), "deadline_schedule_failed", "appointment", appt.ID, &audit.LogOptions{
			Metadata: model.JSONMap{"error": err.Error()},
		})
	}
	return appt, nil
}

func (s *Service) Confirm(ctx context.Context, p *model.Principal, id uuid.UUID, note string) (*model.Appointment, error) {
	return s.apply(ctx, p, id, transitionConfirm, note)
}

func (s *Service) Execute(ctx context.Context, p *model.Principal, id uuid.UUID, note string) (*model.Appointment, error) {
	return s.apply(ctx, p, id, transitionExecute, note)
}

func (s *Service) Cancel(ctx context.Context, p *model.Principal, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.apply(ctx, p, id, transitionCancel, reason)
}

// apply executes one gated transition and records its outcome and
// latency.
func (s *Service) apply(ctx context.Context, p *model.Principal, id uuid.UUID, t transition, note string) (*model.Appointment, error) {
	start := time.Now()
	appt, err := s.applyTransition(ctx, p, id, t, note)
	s.observe(t.to, start, err)
	return appt, err
}

// applyTransition is the transition core: authorization first, then the
// state precondition, then a compare-and-set against the state the
// record was loaded in. A lost race is retried once against a fresh
// snapshot; a second loss, or a snapshot the rule no longer admits,
// surfaces as InvalidTransition.
func (s *Service) applyTransition(ctx context.Context, p *model.Principal, id uuid.UUID, t transition, note string) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Can(p, t.capability, appt); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		from := appt.Status
		if _, ok := t.from[from]; !ok {
			return nil, apperror.InvalidTransition(fmt.Sprintf("cannot %s an appointment in state %s", t.name, from))
		}
		if !t.actorAllowed(p, appt, from) {
			return nil, apperror.Forbidden("not permitted to " + t.name + " this appointment")
		}

		actor := p.UserID()
		s.mark(appt, t.to, &actor, note)

		err = s.repo.TransitionState(ctx, appt, from)
		if err == nil {
			break
		}
		if !apperror.IsKind(err, apperror.KindConflict) {
			return nil, err
		}

		// Stale snapshot; reload once and re-evaluate the precondition.
		appt, err = s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if attempt == 1 {
			return nil, apperror.InvalidTransition("appointment state changed concurrently")
		}
	}

	s.emit(ctx, t.eventType, appt)
	s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), t.name, "appointment", appt.ID, nil)
	return appt, nil
}

// observe records one transition attempt. The outcome label is
// "success" or the error kind that stopped it.
func (s *Service) observe(to model.AppointmentStatus, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.Transitions.WithLabelValues(string(to), outcome).Inc()
	s.metrics.TransitionLatency.Observe(time.Since(start).Seconds())
}

// mark stamps the target state onto the appointment. The actor is nil
// for system-initiated transitions.
func (s *Service) mark(appt *model.Appointment, to model.AppointmentStatus, actor *uuid.UUID, note string) {
	now := time.Now()
	appt.Status = to

	switch to {
	case model.AppointmentStatusPreConfirmed:
		appt.PreConfirmedAt = &now
	case model.AppointmentStatusConfirmed:
		appt.ConfirmedAt = &now
	case model.AppointmentStatusExecuted:
		appt.ExecutedAt = &now
	case model.AppointmentStatusCancelled:
		appt.CancelledAt = &now
		appt.CancelledBy = actor
		if note != "" {
			reason := note
			appt.CancelReason = &reason
		}
		return
	}

	if note != "" {
		if appt.Notes != "" {
			appt.Notes += "\n"
		}
		appt.Notes += note
	}
}

func (s *Service) emit(ctx context.Context, eventType string, appt *model.Appointment) {
	err := s.emitter.Emit(ctx, eventType, event.Payload{
		UserID:        appt.ClientID,
		AppointmentID: appt.ID,
		Params: model.JSONMap{
			"status":       string(appt.Status),
			"scheduled_at": appt.ScheduledAt,
		},
	})
	if err != nil {
		// Emission is recorded for the operator; the transition itself
		// has already committed.
		s.auditor.Log(ctx, appt.ClientID, appt.OrganizationID, "event_emit_failed", "appointment", appt.ID, &audit.LogOptions{
			Metadata: model.JSONMap{"event_type": eventType, "error": err.Error()},
		})
	}
}

// RunDeadlineCheck re-examines a pre_confirmed appointment at its
// deadline. It is the scheduler's handler and must be idempotent:
// an appointment already past pre_confirmed is a no-op.
func (s *Service) RunDeadlineCheck(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil
		}
		return err
	}

	if appt.Status != model.AppointmentStatusPreConfirmed || appt.PreConfirmedAt == nil {
		return nil
	}

	if time.Since(*appt.PreConfirmedAt) < PreConfirmExpiry {
		// Checked early; push the deadline out to the remaining time and
		// remind the client.
		if err := s.scheduler.ScheduleAt(ctx, appt.PreConfirmedAt.Add(PreConfirmExpiry), appt.ID); err != nil {
			return fmt.Errorf("failed to reschedule deadline: %w", err)
		}
		s.emit(ctx, event.TypeAppointmentReminder, appt)
		return nil
	}

	// Expired: cancel as system actor. The compare-and-set guarantees
	// exactly one of two concurrent checks wins and emits.
	start := time.Now()
	from := appt.Status
	s.mark(appt, model.AppointmentStatusCancelled, nil, "pre-confirmation expired")

	if err := s.repo.TransitionState(ctx, appt, from); err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			return nil
		}
		return err
	}

	s.observe(model.AppointmentStatusCancelled, start, nil)
	s.emit(ctx, event.TypeAppointmentExpired, appt)
	return nil
}

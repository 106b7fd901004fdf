package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
)

// Event types emitted by the appointment state machine and scheduler.
const (
	TypeAppointmentPreConfirmed = "appointment.pre_confirmed"
	TypeAppointmentConfirmed    = "appointment.confirmed"
	TypeAppointmentExecuted     = "appointment.executed"
	TypeAppointmentCancelled    = "appointment.cancelled"
	TypeAppointmentExpired      = "appointment.expired"
	TypeAppointmentReminder     = "appointment.reminder"
	TypeUserWelcome             = "user.welcome"
)

// Payload is the envelope consumed by the notification collaborator.
type Payload struct {
	UserID        uuid.UUID     `json:"user_id"`
	AppointmentID uuid.UUID     `json:"appointment_id,omitempty"`
	Params        model.JSONMap `json:"params,omitempty"`
}

// Emitter records domain events for asynchronous delivery. The core
// guarantees emission, not delivery; publication happens in the worker.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload Payload) error
}

type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return s.outboxRepo.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
	})
}

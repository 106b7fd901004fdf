// Package notifier consumes domain events from the broker and turns
// them into deliveries. It runs inside the worker, decoupled from the
// state machine that emitted the events.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/practicedesk/booking-api/internal/email"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/internal/service/event"
	"github.com/practicedesk/booking-api/pkg/logger"
	"github.com/practicedesk/booking-api/pkg/messaging"
)

// Channel is the broker channel domain events are published on.
const Channel = "booking.events"

type envelope struct {
	Type    string        `json:"type"`
	Payload event.Payload `json:"payload"`
}

type Notifier struct {
	broker   messaging.Broker
	emailSvc email.Service
	userRepo repository.UserRepository
	logger   *logger.Logger
}

func New(broker messaging.Broker, emailSvc email.Service, userRepo repository.UserRepository, logger *logger.Logger) *Notifier {
	return &Notifier{
		broker:   broker,
		emailSvc: emailSvc,
		userRepo: userRepo,
		logger:   logger,
	}
}

// Start consumes events until the context is cancelled. A failed
// delivery is logged and dropped; delivery is best effort by contract.
func (n *Notifier) Start(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Channel, err)
	}

	n.logger.Info("Notifier started", "channel", Channel)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Notifier shutting down")
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			if err := n.handle(ctx, raw); err != nil {
				n.logger.Error(err, "Failed to handle event")
			}
		}
	}
}

func (n *Notifier) handle(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	user, err := n.userRepo.Get(ctx, env.Payload.UserID)
	if err != nil {
		return fmt.Errorf("failed to load event recipient: %w", err)
	}

	switch env.Type {
	case event.TypeUserWelcome:
		return n.emailSvc.SendWelcome(ctx, user.Email, user.Name)
	case event.TypeAppointmentConfirmed:
		return n.notice(ctx, user, "Appointment confirmed", env.Payload)
	case event.TypeAppointmentCancelled:
		return n.notice(ctx, user, "Appointment cancelled", env.Payload)
	case event.TypeAppointmentExpired:
		return n.notice(ctx, user, "Appointment expired", env.Payload)
	case event.TypeAppointmentReminder:
		return n.notice(ctx, user, "Please confirm your appointment", env.Payload)
	case event.TypeAppointmentPreConfirmed:
		return n.notice(ctx, user, "Appointment awaiting confirmation", env.Payload)
	case event.TypeAppointmentExecuted:
		return n.notice(ctx, user, "Appointment completed", env.Payload)
	default:
		n.logger.Debug("Ignoring unknown event type", "type", env.Type)
		return nil
	}
}

func (n *Notifier) notice(ctx context.Context, user *model.User, subject string, payload event.Payload) error {
	body := fmt.Sprintf("Hi %s,\n\n%s (appointment %s).", user.Name, subject, payload.AppointmentID)
	return n.emailSvc.SendAppointmentNotice(ctx, user.Email, subject, body)
}

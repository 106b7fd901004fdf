package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusDraft        AppointmentStatus = "draft"
	AppointmentStatusPreConfirmed AppointmentStatus = "pre_confirmed"
	AppointmentStatusConfirmed    AppointmentStatus = "confirmed"
	AppointmentStatusExecuted     AppointmentStatus = "executed"
	AppointmentStatusCancelled    AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusExecuted || s == AppointmentStatusCancelled
}

// Appointment models a booked session. Once it leaves draft it is never
// deleted; cancellation is a state, not a deletion.
type Appointment struct {
	Base
	OrganizationID uuid.UUID         `db:"organization_id" json:"organization_id"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	ClientID       uuid.UUID         `db:"client_id" json:"client_id"`
	StudentID      *uuid.UUID        `db:"student_id" json:"student_id,omitempty"`
	ScheduledAt    time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Duration       time.Duration     `db:"duration" json:"duration"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	PriceCents     int64             `db:"price_cents" json:"price_cents"`
	CreditsUsed    int               `db:"credits_used" json:"credits_used"`
	PreConfirmedAt *time.Time        `db:"pre_confirmed_at" json:"pre_confirmed_at,omitempty"`
	ConfirmedAt    *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ExecutedAt     *time.Time        `db:"executed_at" json:"executed_at,omitempty"`
	CancelledAt    *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy    *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// TenantID identifies the owning organization for scoping.
func (a *Appointment) TenantID() uuid.UUID {
	return a.OrganizationID
}

// OwnerID identifies the booking client as the record owner.
func (a *Appointment) OwnerID() uuid.UUID {
	return a.ClientID
}

type CreateAppointmentRequest struct {
	ProfessionalID  uuid.UUID  `json:"professional_id" binding:"required"`
	ClientID        uuid.UUID  `json:"client_id" binding:"required"`
	StudentID       *uuid.UUID `json:"student_id"`
	ScheduledAt     time.Time  `json:"scheduled_at" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=15,max=240"`
	Notes           string     `json:"notes" binding:"max=1000"`
	PriceCents      int64      `json:"price_cents" binding:"min=0"`
}

// TransitionRequest carries the optional free-text note accepted by the
// named transition endpoints.
type TransitionRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

type AppointmentFilter struct {
	OrganizationID uuid.UUID
	ProfessionalID *uuid.UUID
	ClientID       *uuid.UUID
	Status         AppointmentStatus
	From           time.Time
	To             time.Time
}

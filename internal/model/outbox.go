package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is a domain event awaiting publication. Events are written
// in the same unit of work as the state change that produced them and
// published asynchronously by the worker.
type OutboxEvent struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	EventType    string       `db:"event_type" json:"event_type"`
	Payload      []byte       `db:"payload" json:"payload"`
	Status       OutboxStatus `db:"status" json:"status"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

type DeadlineStatus string

const (
	DeadlineStatusPending DeadlineStatus = "pending"
	DeadlineStatusDone    DeadlineStatus = "done"
	DeadlineStatusFailed  DeadlineStatus = "failed"
)

// Deadline is a scheduled re-examination of a time-sensitive appointment.
// Duplicates are tolerated; the deadline handler is idempotent.
type Deadline struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	AppointmentID uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	DueAt         time.Time      `db:"due_at" json:"due_at"`
	Status        DeadlineStatus `db:"status" json:"status"`
	Attempts      int            `db:"attempts" json:"attempts"`
	LastError     *string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

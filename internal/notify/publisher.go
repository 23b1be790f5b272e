// Package notify is the best-effort fan-out of slot and appointment
// lifecycle events to the two parties of a slot. Delivery is at-most-once:
// a publish failure is logged by the caller and never fails the state
// transition that produced the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TopicSlotUpdate     = "slot:update"
	TopicAppointmentNew = "appointment:new"
)

// Publisher delivers one event to each recipient's personal channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, recipients []uuid.UUID, payload any) error
}

// SlotUpdate is the payload for TopicSlotUpdate. Hold fields are present
// only while the slot is held.
type SlotUpdate struct {
	SlotID        uuid.UUID  `json:"slotId"`
	Status        string     `json:"status"`
	HeldBy        *uuid.UUID `json:"heldBy,omitempty"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
}

// AppointmentNew is the payload for TopicAppointmentNew.
type AppointmentNew struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	SlotID        uuid.UUID `json:"slotId"`
	UserID        uuid.UUID `json:"userId"`
	ExpertID      uuid.UUID `json:"expertId"`
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Status        string    `json:"status"`
}

// Noop discards every event. Injected in tests and wherever the fan-out
// transport is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, []uuid.UUID, any) error { return nil }

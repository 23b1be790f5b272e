package booking

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDurationMins is used when a slot spec does not imply a duration.
const DefaultDurationMins = 50

type SlotStatus string

const (
	SlotOpen      SlotStatus = "open"
	SlotHeld      SlotStatus = "held"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
)

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Slot is a single bookable time window for one provider. All instants
// are UTC. Hold metadata is populated only while held, booking metadata
// only while booked; the transitions into either state clear the other.
type Slot struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	DurationMins  int
	Status        SlotStatus
	HeldBy        *uuid.UUID
	HoldExpiresAt *time.Time
	BookedBy      *uuid.UUID
	AppointmentID *uuid.UUID
	Notes         string
	Fee           int64
	Currency      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveStatus reports the status a reader should act on at the given
// instant: a hold whose deadline has passed counts as open even if no
// release has been persisted yet. Expiry is a data deadline, not a timer.
func (s *Slot) EffectiveStatus(now time.Time) SlotStatus {
	if s.Status == SlotHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
		return SlotOpen
	}
	return s.Status
}

// HeldLiveBy reports whether the slot is currently held by userID with an
// unexpired deadline. The guard is strict: a hold is dead exactly at its
// deadline.
func (s *Slot) HeldLiveBy(userID uuid.UUID, now time.Time) bool {
	return s.Status == SlotHeld &&
		s.HeldBy != nil && *s.HeldBy == userID &&
		s.HoldExpiresAt != nil && s.HoldExpiresAt.After(now)
}

// Payment is a placeholder sub-record for a future payment integration.
// Status stays "unpaid" with the amount copied from the slot fee.
type Payment struct {
	Provider  string
	Status    PaymentStatus
	Amount    int64
	Currency  string
	Reference string
}

// Appointment is the durable record of a confirmed booking. Its times,
// duration and fee are an immutable snapshot of the slot taken at
// confirmation, not a live reference.
type Appointment struct {
	ID            uuid.UUID
	SlotID        uuid.UUID
	UserID        uuid.UUID
	ProviderID    uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	DurationMins  int
	Status        AppointmentStatus
	Payment       Payment
	UserNotes     string
	ProviderNotes string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlotSpec is one entry of a bulk slot-creation request.
type SlotSpec struct {
	StartAt  time.Time
	EndAt    time.Time
	Fee      int64
	Currency string
	Notes    string
}

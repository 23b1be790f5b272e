package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotUnavailable covers every reason a hold can fail: slot
	// missing, already held by someone else, booked, cancelled, or
	// starting in the past. The reasons are deliberately not
	// distinguished to the caller.
	ErrSlotUnavailable = errors.New("slot not available")

	// ErrHoldExpiredOrNotOwned means a confirm was attempted without a
	// live hold owned by the confirming user.
	ErrHoldExpiredOrNotOwned = errors.New("hold expired or slot not held by you")

	// ErrDuplicateBooking means an appointment already exists for the
	// slot. The engine's confirm guard should make this unreachable; the
	// appointment table's uniqueness constraint keeps it safe anyway.
	ErrDuplicateBooking = errors.New("slot already has an appointment")

	ErrAppointmentNotFound = errors.New("appointment not found")
)

// AvailabilityQuery selects the slots a browsing user may see: slots for
// one provider starting within [From, To) that are open, plus the ones
// held by ForUser with an unexpired deadline.
type AvailabilityQuery struct {
	ProviderID uuid.UUID
	From       time.Time
	To         time.Time // zero means unbounded
	ForUser    *uuid.UUID
	Now        time.Time
}

// Repository contains all store interactions the engine needs. The
// mutating slot methods are conditional updates: they apply only if the
// stated predicate still holds, and report failure otherwise. That
// conditional apply is the sole concurrency-control mechanism; no
// application-level locks exist anywhere in this package.
type Repository interface {
	// InsertSlots inserts open slots, skipping any whose
	// (provider, start) collides with an existing non-cancelled slot.
	// Returns the slots actually inserted.
	InsertSlots(ctx context.Context, slots []Slot) ([]Slot, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlotsByProvider(ctx context.Context, providerID uuid.UUID) ([]Slot, error)
	ListAvailableSlots(ctx context.Context, q AvailabilityQuery) ([]Slot, error)

	// ReleaseExpiredHolds resets every held slot whose deadline is at or
	// before now back to open, optionally scoped to one provider.
	// Idempotent; returns the number of slots released.
	ReleaseExpiredHolds(ctx context.Context, providerID *uuid.UUID, now time.Time) (int64, error)

	// ReleaseExpiredHold does the same for a single slot, used on the
	// hold and confirm paths so a just-expired hold cannot block a new
	// holder.
	ReleaseExpiredHold(ctx context.Context, slotID uuid.UUID, now time.Time) error

	// HoldSlot transitions an open, future-starting slot to held.
	// Exactly one of N concurrent callers wins; the rest get
	// ErrSlotUnavailable.
	HoldSlot(ctx context.Context, slotID, userID uuid.UUID, now, expiresAt time.Time) (*Slot, error)

	// BookSlot converts a live hold owned by userID into a booked slot
	// plus its appointment, atomically. Guard failure yields
	// ErrHoldExpiredOrNotOwned and creates nothing.
	BookSlot(ctx context.Context, slotID, userID uuid.UUID, now time.Time, userNotes string) (*Slot, *Appointment, error)

	// CancelSlot transitions an open or held slot of the provider to
	// cancelled (terminal).
	CancelSlot(ctx context.Context, slotID, providerID uuid.UUID) (*Slot, error)

	ListAppointmentsByUser(ctx context.Context, userID uuid.UUID) ([]Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error)
}

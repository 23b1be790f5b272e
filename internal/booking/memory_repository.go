package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository with the same conditional
// update semantics as the Postgres implementation: every mutation checks
// its predicate and applies atomically under one mutex, so racing callers
// observe the same winner-takes-all behavior. Used by tests.
type MemoryRepository struct {
	mu           sync.Mutex
	slots        map[uuid.UUID]*Slot
	appointments map[uuid.UUID]*Appointment // keyed by appointment id
	bySlot       map[uuid.UUID]uuid.UUID    // slot id -> appointment id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots:        make(map[uuid.UUID]*Slot),
		appointments: make(map[uuid.UUID]*Appointment),
		bySlot:       make(map[uuid.UUID]uuid.UUID),
	}
}

func copySlot(s *Slot) *Slot {
	c := *s
	if s.HeldBy != nil {
		v := *s.HeldBy
		c.HeldBy = &v
	}
	if s.HoldExpiresAt != nil {
		v := *s.HoldExpiresAt
		c.HoldExpiresAt = &v
	}
	if s.BookedBy != nil {
		v := *s.BookedBy
		c.BookedBy = &v
	}
	if s.AppointmentID != nil {
		v := *s.AppointmentID
		c.AppointmentID = &v
	}
	return &c
}

func (r *MemoryRepository) hasLiveSlotAt(providerID uuid.UUID, startAt time.Time) bool {
	for _, s := range r.slots {
		if s.ProviderID == providerID && s.StartAt.Equal(startAt) && s.Status != SlotCancelled {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) releaseLocked(s *Slot, now time.Time) {
	if s.Status == SlotHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
		s.Status = SlotOpen
		s.HeldBy = nil
		s.HoldExpiresAt = nil
		s.UpdatedAt = now
	}
}

func (r *MemoryRepository) InsertSlots(_ context.Context, slots []Slot) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var created []Slot
	for _, s := range slots {
		if r.hasLiveSlotAt(s.ProviderID, s.StartAt) {
			continue // duplicate start, skipped
		}
		stored := copySlot(&s)
		stored.Status = SlotOpen
		r.slots[stored.ID] = stored
		created = append(created, *copySlot(stored))
	}
	return created, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return copySlot(s), nil
}

func (r *MemoryRepository) ListSlotsByProvider(_ context.Context, providerID uuid.UUID) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Slot
	for _, s := range r.slots {
		if s.ProviderID == providerID {
			result = append(result, *copySlot(s))
		}
	}
	sortSlots(result)
	return result, nil
}

func (r *MemoryRepository) ListAvailableSlots(_ context.Context, q AvailabilityQuery) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Slot
	for _, s := range r.slots {
		if s.ProviderID != q.ProviderID {
			continue
		}
		if s.StartAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !s.StartAt.Before(q.To) {
			continue
		}

		visible := s.Status == SlotOpen ||
			(q.ForUser != nil && s.HeldLiveBy(*q.ForUser, q.Now))
		if visible {
			result = append(result, *copySlot(s))
		}
	}
	sortSlots(result)
	return result, nil
}

func (r *MemoryRepository) ReleaseExpiredHolds(_ context.Context, providerID *uuid.UUID, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var released int64
	for _, s := range r.slots {
		if providerID != nil && s.ProviderID != *providerID {
			continue
		}
		if s.Status == SlotHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
			r.releaseLocked(s, now)
			released++
		}
	}
	return released, nil
}

func (r *MemoryRepository) ReleaseExpiredHold(_ context.Context, slotID uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.slots[slotID]; ok {
		r.releaseLocked(s, now)
	}
	return nil
}

func (r *MemoryRepository) HoldSlot(_ context.Context, slotID, userID uuid.UUID, now, expiresAt time.Time) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.Status != SlotOpen || !s.StartAt.After(now) {
		return nil, ErrSlotUnavailable
	}

	s.Status = SlotHeld
	s.HeldBy = &userID
	s.HoldExpiresAt = &expiresAt
	s.BookedBy = nil
	s.AppointmentID = nil
	s.UpdatedAt = now
	return copySlot(s), nil
}

func (r *MemoryRepository) BookSlot(_ context.Context, slotID, userID uuid.UUID, now time.Time, userNotes string) (*Slot, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || !s.HeldLiveBy(userID, now) {
		return nil, nil, ErrHoldExpiredOrNotOwned
	}

	if _, exists := r.bySlot[slotID]; exists {
		return nil, nil, ErrDuplicateBooking
	}

	appt := NewAppointmentFromSlot(s, userID, userNotes, now)
	stored := *appt
	r.appointments[appt.ID] = &stored
	r.bySlot[slotID] = appt.ID

	s.Status = SlotBooked
	s.BookedBy = &userID
	apptID := appt.ID
	s.AppointmentID = &apptID
	s.HeldBy = nil
	s.HoldExpiresAt = nil
	s.UpdatedAt = now

	return copySlot(s), appt, nil
}

func (r *MemoryRepository) CancelSlot(_ context.Context, slotID, providerID uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.ProviderID != providerID || (s.Status != SlotOpen && s.Status != SlotHeld) {
		return nil, ErrSlotUnavailable
	}

	s.Status = SlotCancelled
	s.HeldBy = nil
	s.HoldExpiresAt = nil
	return copySlot(s), nil
}

func (r *MemoryRepository) ListAppointmentsByUser(_ context.Context, userID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (r *MemoryRepository) ListAppointmentsByProvider(_ context.Context, providerID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.ProviderID == providerID {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

// MutateSlot applies fn to the stored slot outside any engine flow. Test
// hook for forcing states the engine itself would never produce.
func (r *MemoryRepository) MutateSlot(id uuid.UUID, fn func(*Slot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[id]; ok {
		fn(s)
	}
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})
}

func sortAppointments(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartAt.Before(appts[j].StartAt)
	})
}

package booking

import (
	"time"

	"github.com/google/uuid"
)

// NewAppointmentFromSlot builds the appointment record for a confirmed
// booking. Times, duration, fee and currency are copied from the slot at
// this instant so the record stays correct even if the slot row is later
// touched. Payment starts unpaid with the slot fee as the amount.
//
// Both store implementations call this inside their book transaction so
// the snapshot and the slot transition come from the same read.
func NewAppointmentFromSlot(slot *Slot, userID uuid.UUID, userNotes string, now time.Time) *Appointment {
	duration := slot.DurationMins
	if duration <= 0 {
		duration = DefaultDurationMins
	}

	return &Appointment{
		ID:           uuid.New(),
		SlotID:       slot.ID,
		UserID:       userID,
		ProviderID:   slot.ProviderID,
		StartAt:      slot.StartAt,
		EndAt:        slot.EndAt,
		DurationMins: duration,
		Status:       AppointmentConfirmed,
		Payment: Payment{
			Status:   PaymentUnpaid,
			Amount:   slot.Fee,
			Currency: slot.Currency,
		},
		UserNotes: userNotes,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewAppointmentFromSlot(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 30, 0, 0, time.UTC)
	user := uuid.New()
	slot := &Slot{
		ID:           uuid.New(),
		ProviderID:   uuid.New(),
		StartAt:      time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC),
		EndAt:        time.Date(2026, 2, 18, 10, 50, 0, 0, time.UTC),
		DurationMins: 50,
		Status:       SlotHeld,
		Fee:          500,
		Currency:     "NPR",
	}

	appt := NewAppointmentFromSlot(slot, user, "please call first", now)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, slot.ID, appt.SlotID)
	assert.Equal(t, user, appt.UserID)
	assert.Equal(t, slot.ProviderID, appt.ProviderID)
	assert.Equal(t, slot.StartAt, appt.StartAt)
	assert.Equal(t, slot.EndAt, appt.EndAt)
	assert.Equal(t, 50, appt.DurationMins)
	assert.Equal(t, AppointmentConfirmed, appt.Status)
	assert.Equal(t, "please call first", appt.UserNotes)
	assert.Equal(t, now, appt.CreatedAt)

	assert.Equal(t, PaymentUnpaid, appt.Payment.Status)
	assert.Equal(t, int64(500), appt.Payment.Amount)
	assert.Equal(t, "NPR", appt.Payment.Currency)
	assert.Empty(t, appt.Payment.Provider)
	assert.Empty(t, appt.Payment.Reference)
}

func TestNewAppointmentFromSlotDefaultsDuration(t *testing.T) {
	slot := &Slot{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		StartAt:    time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2026, 2, 18, 10, 50, 0, 0, time.UTC),
	}

	appt := NewAppointmentFromSlot(slot, uuid.New(), "", time.Now())
	assert.Equal(t, DefaultDurationMins, appt.DurationMins)
}

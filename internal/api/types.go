package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/sathi-care/booking-service/internal/booking"
)

type SlotSpecRequest struct {
	StartAt  string `json:"startAt" validate:"required"`
	EndAt    string `json:"endAt" validate:"required"`
	Fee      int64  `json:"fee" validate:"gte=0"`
	Currency string `json:"currency" validate:"omitempty,uppercase,len=3"`
	Notes    string `json:"notes"`
}

type CreateSlotsRequest struct {
	Slots []SlotSpecRequest `json:"slots" validate:"required,min=1,dive"`
}

type ConfirmRequest struct {
	Notes string `json:"notes"`
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProviderID    uuid.UUID  `json:"providerId"`
	StartAt       time.Time  `json:"startAt"`
	EndAt         time.Time  `json:"endAt"`
	DurationMins  int        `json:"durationMins"`
	Status        string     `json:"status"`
	HeldBy        *uuid.UUID `json:"heldBy,omitempty"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
	BookedBy      *uuid.UUID `json:"bookedBy,omitempty"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Fee           int64      `json:"fee"`
	Currency      string     `json:"currency"`
}

type PaymentResponse struct {
	Provider  string `json:"provider,omitempty"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID       `json:"id"`
	SlotID       uuid.UUID       `json:"slotId"`
	UserID       uuid.UUID       `json:"userId"`
	ExpertID     uuid.UUID       `json:"expertId"`
	StartAt      time.Time       `json:"startAt"`
	EndAt        time.Time       `json:"endAt"`
	DurationMins int             `json:"durationMins"`
	Status       string          `json:"status"`
	Payment      PaymentResponse `json:"payment"`
	UserNotes    string          `json:"userNotes,omitempty"`
	ExpertNotes  string          `json:"expertNotes,omitempty"`
}

type CreateSlotsResponse struct {
	CreatedCount int            `json:"createdCount"`
	Slots        []SlotResponse `json:"slots"`
}

type SlotListResponse struct {
	Slots []SlotResponse `json:"slots"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type ConfirmResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Slot        SlotResponse        `json:"slot"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		ProviderID:    s.ProviderID,
		StartAt:       s.StartAt,
		EndAt:         s.EndAt,
		DurationMins:  s.DurationMins,
		Status:        string(s.Status),
		HeldBy:        s.HeldBy,
		HoldExpiresAt: s.HoldExpiresAt,
		BookedBy:      s.BookedBy,
		AppointmentID: s.AppointmentID,
		Notes:         s.Notes,
		Fee:           s.Fee,
		Currency:      s.Currency,
	}
}

func toSlotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		SlotID:       a.SlotID,
		UserID:       a.UserID,
		ExpertID:     a.ProviderID,
		StartAt:      a.StartAt,
		EndAt:        a.EndAt,
		DurationMins: a.DurationMins,
		Status:       string(a.Status),
		Payment: PaymentResponse{
			Provider:  a.Payment.Provider,
			Status:    string(a.Payment.Status),
			Amount:    a.Payment.Amount,
			Currency:  a.Payment.Currency,
			Reference: a.Payment.Reference,
		},
		UserNotes:   a.UserNotes,
		ExpertNotes: a.ProviderNotes,
	}
}

func toAppointmentResponses(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

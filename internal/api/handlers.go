package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sathi-care/booking-service/internal/booking"
)

var validate = validator.New()

func createSlotsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := UserFrom(r.Context())

		var req CreateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		specs := make([]booking.SlotSpec, 0, len(req.Slots))
		for _, s := range req.Slots {
			startAt, err := time.Parse(time.RFC3339, s.StartAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "startAt must be an RFC3339 timestamp")
				return
			}
			endAt, err := time.Parse(time.RFC3339, s.EndAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "endAt must be an RFC3339 timestamp")
				return
			}
			specs = append(specs, booking.SlotSpec{
				StartAt:  startAt,
				EndAt:    endAt,
				Fee:      s.Fee,
				Currency: s.Currency,
				Notes:    s.Notes,
			})
		}

		created, err := engine.CreateSlots(r.Context(), provider.ID, specs)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateSlotsResponse{
			CreatedCount: len(created),
			Slots:        toSlotResponses(created),
		})
	}
}

// listProviderSlotsHandler serves two views of one path: the provider
// itself, with no date filter, gets its full inventory; everyone else
// gets the open-plus-own-held availability view, optionally narrowed to
// one local calendar day.
func listProviderSlotsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider id must be a valid UUID")
			return
		}

		caller := UserFrom(r.Context())
		dayKey := r.URL.Query().Get("date")

		if caller.ID == providerID && dayKey == "" {
			slots, err := engine.ListProviderSlots(r.Context(), providerID)
			if err != nil {
				handleEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, SlotListResponse{Slots: toSlotResponses(slots)})
			return
		}

		slots, err := engine.ListAvailable(r.Context(), providerID, dayKey, &caller.ID)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotListResponse{Slots: toSlotResponses(slots)})
	}
}

func holdSlotHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot id must be a valid UUID")
			return
		}

		caller := UserFrom(r.Context())
		slot, err := engine.Hold(r.Context(), slotID, caller.ID)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

func confirmSlotHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot id must be a valid UUID")
			return
		}

		// Notes body is optional.
		var req ConfirmRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		caller := UserFrom(r.Context())
		appt, slot, err := engine.Confirm(r.Context(), slotID, caller.ID, req.Notes)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ConfirmResponse{
			Appointment: toAppointmentResponse(*appt),
			Slot:        toSlotResponse(*slot),
		})
	}
}

func cancelSlotHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot id must be a valid UUID")
			return
		}

		caller := UserFrom(r.Context())
		slot, err := engine.Cancel(r.Context(), slotID, caller.ID)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

func listMyAppointmentsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := UserFrom(r.Context())
		appts, err := engine.ListUserAppointments(r.Context(), caller.ID)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toAppointmentResponses(appts)})
	}
}

func listExpertAppointmentsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := UserFrom(r.Context())
		appts, err := engine.ListProviderAppointments(r.Context(), caller.ID)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toAppointmentResponses(appts)})
	}
}

func handleEngineError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_not_available", "Slot not available")
	case errors.Is(err, booking.ErrHoldExpiredOrNotOwned):
		writeError(w, http.StatusConflict, "hold_expired_or_not_owned", "Hold expired or slot not held by you")
	case errors.Is(err, booking.ErrDuplicateBooking):
		writeError(w, http.StatusConflict, "duplicate_booking", "Slot already has an appointment")
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", "Slot not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Storage timed out, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Server error")
	}
}

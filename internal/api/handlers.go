package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/booking"
	"github.com/mindmate/scheduling/internal/directory"
	"github.com/mindmate/scheduling/internal/marketplace"
	"github.com/mindmate/scheduling/internal/match"
	"github.com/mindmate/scheduling/internal/slot"
)

func searchSpecialistsHandler(f *marketplace.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Page == 0 {
			req.Page = 1
		}
		if req.Size == 0 {
			req.Size = 20
		}

		res, err := f.SearchSpecialists(r.Context(), match.Request{
			Mode:            directory.ConsultationMode(req.Mode),
			Languages:       req.Languages,
			Specializations: req.Specializations,
			BudgetMax:       req.BudgetMax,
			Region:          req.Region,
			SortBy:          match.SortOption(req.SortBy),
			Page:            req.Page,
			Size:            req.Size,
		})
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSearchResponse(res))
	}
}

func listOpenSlotsHandler(f *marketplace.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialistID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialist_id", "id must be a valid UUID")
			return
		}

		var from, to time.Time
		if v := r.URL.Query().Get("from"); v != "" {
			if from, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_range", "from must be RFC3339")
				return
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if to, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_range", "to must be RFC3339")
				return
			}
		}

		slots, err := f.ListOpenSlots(r.Context(), specialistID, from, to)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, sl := range slots {
			resp = append(resp, toSlotResponse(sl))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func holdSlotHandler(f *marketplace.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		var req HoldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if req.TTLSeconds < 0 {
			writeError(w, http.StatusBadRequest, "invalid_ttl", "ttl_seconds must not be negative")
			return
		}

		h, err := f.HoldSlot(r.Context(), slotID, patientID, time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, HoldResponse{HoldToken: h.Token, ExpiresAt: h.ExpiresAt})
	}
}

func confirmAppointmentHandler(f *marketplace.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := f.ConfirmAppointment(r.Context(), req.HoldToken, patientID,
			directory.ConsultationMode(req.ConsultationMode))
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// appointmentAction adapts the shared id-parse/respond plumbing for the
// single-appointment lifecycle endpoints.
func appointmentAction(call func(r *http.Request, id uuid.UUID) (booking.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := call(r, id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func providerConfirmHandler(f *marketplace.Facade) http.HandlerFunc {
	return appointmentAction(func(r *http.Request, id uuid.UUID) (booking.Appointment, error) {
		return f.ProviderConfirm(r.Context(), id)
	})
}

func cancelAppointmentHandler(f *marketplace.Facade) http.HandlerFunc {
	return appointmentAction(func(r *http.Request, id uuid.UUID) (booking.Appointment, error) {
		var req CancelRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		return f.Cancel(r.Context(), id, req.Reason)
	})
}

func rescheduleAppointmentHandler(f *marketplace.Facade) http.HandlerFunc {
	return appointmentAction(func(r *http.Request, id uuid.UUID) (booking.Appointment, error) {
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return booking.Appointment{}, errBadBody
		}
		newSlotID, err := uuid.Parse(req.NewSlotID)
		if err != nil {
			return booking.Appointment{}, errBadSlotID
		}
		return f.Reschedule(r.Context(), id, newSlotID)
	})
}

func completeAppointmentHandler(f *marketplace.Facade) http.HandlerFunc {
	return appointmentAction(func(r *http.Request, id uuid.UUID) (booking.Appointment, error) {
		return f.Complete(r.Context(), id)
	})
}

func getAppointmentHandler(f *marketplace.Facade) http.HandlerFunc {
	return appointmentAction(func(r *http.Request, id uuid.UUID) (booking.Appointment, error) {
		return f.GetAppointment(r.Context(), id)
	})
}

func listAppointmentsHandler(f *marketplace.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := uuid.Parse(r.URL.Query().Get("party_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_party_id", "party_id must be a valid UUID")
			return
		}
		role := booking.Role(r.URL.Query().Get("role"))

		appts, err := f.ListAppointments(r.Context(), partyID, role)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

var (
	errBadBody   = errors.New("could not parse JSON")
	errBadSlotID = errors.New("new_slot_id must be a valid UUID")
)

// handleError maps the service error taxonomy onto HTTP statuses with
// stable machine-readable codes.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadBody):
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
	case errors.Is(err, errBadSlotID):
		writeError(w, http.StatusBadRequest, "invalid_slot_id", err.Error())
	case errors.Is(err, match.ErrInvalidRequest),
		errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, directory.ErrSpecialistNotFound):
		writeError(w, http.StatusNotFound, "specialist_not_found", err.Error())
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, slot.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, "hold_not_found", err.Error())
	case errors.Is(err, slot.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is held or booked, pick another slot")
	case errors.Is(err, slot.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", "hold expired, request a new hold")
	case errors.Is(err, slot.ErrHoldMismatch):
		writeError(w, http.StatusConflict, "hold_token_mismatch", "hold belongs to a different patient")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/booking"
	"github.com/mindmate/scheduling/internal/match"
	"github.com/mindmate/scheduling/internal/slot"
)

type SearchRequest struct {
	Mode            string   `json:"consultation_mode,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
	BudgetMax       float64  `json:"budget_max,omitempty"`
	Region          string   `json:"region,omitempty"`
	SortBy          string   `json:"sort_by,omitempty"`
	Page            int      `json:"page"`
	Size            int      `json:"size"`
}

type RankedSpecialist struct {
	ID              uuid.UUID       `json:"id"`
	FullName        string          `json:"full_name"`
	SpecialistType  string          `json:"specialist_type,omitempty"`
	Specializations []string        `json:"specializations,omitempty"`
	Languages       []string        `json:"languages,omitempty"`
	Rating          float64         `json:"rating"`
	YearsExperience int             `json:"years_experience"`
	SessionFee      float64         `json:"session_fee"`
	Region          string          `json:"region,omitempty"`
	NextOpenSlot    *time.Time      `json:"next_open_slot,omitempty"`
	Score           float64         `json:"score"`
	Breakdown       match.Breakdown `json:"score_breakdown"`
}

type SearchResponse struct {
	Results       []RankedSpecialist `json:"results"`
	TotalCount    int                `json:"total_count"`
	Page          int                `json:"page"`
	Size          int                `json:"size"`
	Relaxed       bool               `json:"relaxed"`
	RelaxedFields []string           `json:"relaxed_fields,omitempty"`
}

type SlotResponse struct {
	ID           uuid.UUID `json:"id"`
	SpecialistID uuid.UUID `json:"specialist_id"`
	Start        time.Time `json:"start_time"`
	End          time.Time `json:"end_time"`
	Status       string    `json:"status"`
}

type HoldRequest struct {
	PatientID  string `json:"patient_id"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type HoldResponse struct {
	HoldToken string    `json:"hold_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConfirmRequest struct {
	HoldToken        string `json:"hold_token"`
	PatientID        string `json:"patient_id"`
	ConsultationMode string `json:"consultation_mode"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	SpecialistID  uuid.UUID  `json:"specialist_id"`
	SlotID        uuid.UUID  `json:"slot_id"`
	Mode          string     `json:"consultation_mode"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	RescheduledTo *uuid.UUID `json:"rescheduled_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toSearchResponse(res *match.Result) SearchResponse {
	out := SearchResponse{
		Results:       make([]RankedSpecialist, 0, len(res.Specialists)),
		TotalCount:    res.TotalCount,
		Page:          res.Page,
		Size:          res.Size,
		Relaxed:       res.Relaxed,
		RelaxedFields: res.RelaxedFields,
	}
	for _, r := range res.Specialists {
		out.Results = append(out.Results, RankedSpecialist{
			ID:              r.ID,
			FullName:        r.FullName,
			SpecialistType:  r.SpecialistType,
			Specializations: r.Specializations,
			Languages:       r.Languages,
			Rating:          r.Rating,
			YearsExperience: r.YearsExperience,
			SessionFee:      r.SessionFee,
			Region:          r.Region,
			NextOpenSlot:    r.NextOpenSlot,
			Score:           r.Score,
			Breakdown:       r.Breakdown,
		})
	}
	return out
}

func toSlotResponse(sl slot.Slot) SlotResponse {
	return SlotResponse{
		ID:           sl.ID,
		SpecialistID: sl.SpecialistID,
		Start:        sl.Start,
		End:          sl.End,
		Status:       string(sl.Status),
	}
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		SpecialistID: a.SpecialistID,
		SlotID:       a.SlotID,
		Mode:         string(a.Mode),
		Status:       string(a.Status),
		Reason:       a.Reason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.RescheduledTo != uuid.Nil {
		to := a.RescheduledTo
		resp.RescheduledTo = &to
	}
	return resp
}

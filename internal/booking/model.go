package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/directory"
)

type Status string

const (
	// StatusScheduled is the initial state, created when a hold is
	// confirmed by the patient.
	StatusScheduled Status = "scheduled"
	// StatusConfirmed means the provider acknowledged the booking.
	StatusConfirmed Status = "confirmed"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal; the appointment record is retained.
	StatusCancelled Status = "cancelled"
	// StatusRescheduled is terminal for this record; a new scheduled
	// appointment against another slot carries the booking forward.
	StatusRescheduled Status = "rescheduled"
)

// transitions is the full edge set of the appointment state machine.
// Anything not listed fails with ErrInvalidTransition.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusConfirmed:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusConfirmed: {
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Role identifies which side of an appointment a party is on.
type Role string

const (
	RolePatient    Role = "patient"
	RoleSpecialist Role = "specialist"
)

func ValidRole(s string) bool {
	switch Role(s) {
	case RolePatient, RoleSpecialist:
		return true
	}
	return false
}

// Appointment references its slot, patient and specialist by identity
// only; the owning stores resolve them.
type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	SpecialistID  uuid.UUID
	SlotID        uuid.UUID // immutable once set
	Mode          directory.ConsultationMode
	Status        Status
	Reason        string    // cancellation or reschedule reason, if any
	RescheduledTo uuid.UUID // successor appointment, when rescheduled
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

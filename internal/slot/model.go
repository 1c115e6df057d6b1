package slot

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	// StatusOpen means the slot can be held.
	StatusOpen Status = "open"
	// StatusHeld means a non-expired hold is present.
	StatusHeld Status = "held"
	// StatusBooked means exactly one live appointment references the slot.
	StatusBooked Status = "booked"
	// StatusBlocked means the slot was released too close to its start
	// time and must not be rebooked.
	StatusBlocked Status = "blocked"
)

// Hold is a time-boxed exclusive reservation on a slot. The token is
// single use: consumed on confirm or invalidated on expiry or release.
type Hold struct {
	Token     string
	PatientID uuid.UUID
	ExpiresAt time.Time
}

func (h *Hold) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

type Slot struct {
	ID           uuid.UUID
	SpecialistID uuid.UUID
	Start        time.Time
	End          time.Time
	Status       Status
	Hold         *Hold
}

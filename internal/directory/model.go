package directory

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the admin-side approval state of a specialist.
// Only approved specialists are eligible for matching.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationApproved  VerificationStatus = "approved"
	VerificationRejected  VerificationStatus = "rejected"
	VerificationSuspended VerificationStatus = "suspended"
)

// ConsultationMode is how a session is delivered.
type ConsultationMode string

const (
	ModeOnline   ConsultationMode = "online"
	ModeInPerson ConsultationMode = "in_person"
	ModeHybrid   ConsultationMode = "hybrid"
)

// ValidMode reports whether s names a known consultation mode.
func ValidMode(s string) bool {
	switch ConsultationMode(s) {
	case ModeOnline, ModeInPerson, ModeHybrid:
		return true
	}
	return false
}

// Specialist is a read-only provider record sourced from the directory.
// Induction, verification and rating aggregation happen elsewhere; this
// core only consumes the result.
type Specialist struct {
	ID              uuid.UUID
	FullName        string
	SpecialistType  string
	Specializations []string
	Languages       []string
	Rating          float64 // 0..5
	YearsExperience int
	Modes           []ConsultationMode
	SessionFee      float64
	Region          string
	Status          VerificationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SupportsMode reports whether the specialist offers the given mode.
// Hybrid specialists support both online and in-person requests.
func (s *Specialist) SupportsMode(mode ConsultationMode) bool {
	for _, m := range s.Modes {
		if m == mode || m == ModeHybrid {
			return true
		}
	}
	return false
}

// RemoteEligible reports whether the specialist can see patients without
// a region match.
func (s *Specialist) RemoteEligible() bool {
	return s.SupportsMode(ModeOnline)
}

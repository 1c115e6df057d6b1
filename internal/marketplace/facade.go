// Package marketplace is the single entry point callers use: it joins
// the read-only directory, the matcher and the booking service into the
// patient/provider-facing surface.
package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/booking"
	"github.com/mindmate/scheduling/internal/directory"
	"github.com/mindmate/scheduling/internal/match"
	"github.com/mindmate/scheduling/internal/metrics"
	"github.com/mindmate/scheduling/internal/slot"
)

type Facade struct {
	dir     directory.Directory
	slots   *slot.Store
	matcher *match.Matcher
	booking *booking.Service
	metrics *metrics.BookingMetrics
	now     func() time.Time
}

func New(dir directory.Directory, slots *slot.Store, matcher *match.Matcher, bookingSvc *booking.Service, m *metrics.BookingMetrics) *Facade {
	return &Facade{
		dir:     dir,
		slots:   slots,
		matcher: matcher,
		booking: bookingSvc,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock overrides the facade clock, for tests.
func (f *Facade) WithClock(now func() time.Time) *Facade {
	f.now = now
	return f
}

// SearchSpecialists ranks the directory against the request. Searches
// read a point-in-time snapshot and coordinate with nothing; a slot
// shown as available can be gone by the time a hold arrives, which the
// hold's own atomicity settles.
func (f *Facade) SearchSpecialists(ctx context.Context, req match.Request) (*match.Result, error) {
	start := time.Now()

	specialists, err := f.dir.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory snapshot: %w", err)
	}

	now := f.now()
	candidates := make([]match.Candidate, 0, len(specialists))
	for _, sp := range specialists {
		c := match.Candidate{Specialist: sp}
		if at, ok := f.slots.EarliestOpen(sp.ID, now); ok {
			c.NextOpenSlot = &at
		}
		candidates = append(candidates, c)
	}

	res, err := f.matcher.Search(candidates, req, now)
	if err != nil {
		return nil, err
	}

	f.metrics.ObserveSearchDuration(time.Since(start).Seconds())
	return res, nil
}

func (f *Facade) GetSpecialist(ctx context.Context, id uuid.UUID) (*directory.Specialist, error) {
	return f.dir.Get(ctx, id)
}

func (f *Facade) ListOpenSlots(ctx context.Context, specialistID uuid.UUID, from, to time.Time) ([]slot.Slot, error) {
	return f.booking.ListOpenSlots(ctx, specialistID, from, to)
}

func (f *Facade) HoldSlot(ctx context.Context, slotID, patientID uuid.UUID, ttl time.Duration) (slot.Hold, error) {
	return f.booking.HoldSlot(ctx, slotID, patientID, ttl)
}

func (f *Facade) ConfirmAppointment(ctx context.Context, token string, patientID uuid.UUID, mode directory.ConsultationMode) (booking.Appointment, error) {
	return f.booking.ConfirmAppointment(ctx, token, patientID, mode)
}

func (f *Facade) ProviderConfirm(ctx context.Context, appointmentID uuid.UUID) (booking.Appointment, error) {
	return f.booking.ProviderConfirm(ctx, appointmentID)
}

func (f *Facade) Cancel(ctx context.Context, appointmentID uuid.UUID, reason string) (booking.Appointment, error) {
	return f.booking.Cancel(ctx, appointmentID, reason)
}

func (f *Facade) Reschedule(ctx context.Context, appointmentID, newSlotID uuid.UUID) (booking.Appointment, error) {
	return f.booking.Reschedule(ctx, appointmentID, newSlotID)
}

func (f *Facade) Complete(ctx context.Context, appointmentID uuid.UUID) (booking.Appointment, error) {
	return f.booking.Complete(ctx, appointmentID)
}

func (f *Facade) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (booking.Appointment, error) {
	return f.booking.GetAppointment(ctx, appointmentID)
}

func (f *Facade) ListAppointments(ctx context.Context, partyID uuid.UUID, role booking.Role) ([]booking.Appointment, error) {
	return f.booking.ListAppointments(ctx, partyID, role)
}

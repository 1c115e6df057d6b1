package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/directory"
	"github.com/mindmate/scheduling/internal/metrics"
	"github.com/mindmate/scheduling/internal/notify"
	"github.com/mindmate/scheduling/internal/slot"
	"github.com/mindmate/scheduling/pkg/logging"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// Config carries the booking policies.
type Config struct {
	// DefaultHoldTTL is used when the caller does not ask for a TTL.
	DefaultHoldTTL time.Duration
	// MaxHoldTTL caps caller-supplied TTLs.
	MaxHoldTTL time.Duration
	// CancelNoticeWindow: a booked slot cancelled closer to its start
	// than this is blocked instead of reopened.
	CancelNoticeWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultHoldTTL <= 0 {
		c.DefaultHoldTTL = 10 * time.Minute
	}
	if c.MaxHoldTTL <= 0 {
		c.MaxHoldTTL = time.Hour
	}
	if c.CancelNoticeWindow < 0 {
		c.CancelNoticeWindow = 0
	}
	return c
}

// Service owns all slot and appointment writes. Mutations on the same
// slot serialize inside the slot store; mutations on the same
// appointment serialize on a per-appointment lock here. Notifications
// go out only after the transition committed and are best effort.
type Service struct {
	slots    *slot.Store
	ledger   *Ledger
	dir      directory.Directory
	notifier notify.Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	cfg      Config
	locks    *keyedMutex
	now      func() time.Time
}

func NewService(slots *slot.Store, ledger *Ledger, dir directory.Directory, notifier notify.Notifier, m *metrics.BookingMetrics, logger *logging.Logger, cfg Config) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Service{
		slots:    slots,
		ledger:   ledger,
		dir:      dir,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HoldSlot places a time-boxed exclusive hold on an open slot. Under
// concurrent callers exactly one wins; the rest get
// slot.ErrSlotUnavailable and are expected to pick another slot.
func (s *Service) HoldSlot(ctx context.Context, slotID, patientID uuid.UUID, ttl time.Duration) (slot.Hold, error) {
	if patientID == uuid.Nil {
		return slot.Hold{}, fmt.Errorf("%w: patient id is required", ErrInvalidInput)
	}
	if ttl < 0 {
		return slot.Hold{}, fmt.Errorf("%w: ttl must not be negative", ErrInvalidInput)
	}
	if ttl == 0 {
		ttl = s.cfg.DefaultHoldTTL
	}
	if ttl > s.cfg.MaxHoldTTL {
		ttl = s.cfg.MaxHoldTTL
	}

	now := s.now()
	h, err := s.slots.Hold(slotID, patientID, ttl, now)
	if err != nil {
		s.metrics.ObserveHold(holdOutcome(err))
		return slot.Hold{}, err
	}
	s.metrics.ObserveHold("granted")

	sl, _ := s.slots.Get(slotID)
	s.notifier.Publish(ctx, notify.Event{
		Type:         notify.EventHoldCreated,
		SlotID:       slotID,
		PatientID:    patientID,
		SpecialistID: sl.SpecialistID,
		At:           now,
	})
	return h, nil
}

// ConfirmAppointment consumes a hold token and creates the appointment.
// The token is single use; an expired token reclaims the slot as a side
// effect so the next patient does not wait for the reaper.
func (s *Service) ConfirmAppointment(ctx context.Context, token string, patientID uuid.UUID, mode directory.ConsultationMode) (Appointment, error) {
	if token == "" {
		return Appointment{}, fmt.Errorf("%w: hold token is required", ErrInvalidInput)
	}
	if patientID == uuid.Nil {
		return Appointment{}, fmt.Errorf("%w: patient id is required", ErrInvalidInput)
	}
	if !directory.ValidMode(string(mode)) {
		return Appointment{}, fmt.Errorf("%w: unknown consultation mode %q", ErrInvalidInput, mode)
	}

	now := s.now()
	booked, err := s.slots.ConsumeHold(token, patientID, now)
	if err != nil {
		s.metrics.ObserveConfirm(confirmOutcome(err))
		return Appointment{}, err
	}

	appt := Appointment{
		ID:           uuid.New(),
		PatientID:    patientID,
		SpecialistID: booked.SpecialistID,
		SlotID:       booked.ID,
		Mode:         mode,
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.ledger.Put(appt)
	s.metrics.ObserveConfirm("scheduled")

	s.publish(ctx, notify.EventAppointmentScheduled, appt, "")
	return appt, nil
}

// ProviderConfirm is the specialist acknowledging a scheduled booking.
func (s *Service) ProviderConfirm(ctx context.Context, appointmentID uuid.UUID) (Appointment, error) {
	return s.transition(ctx, appointmentID, StatusConfirmed, "", notify.EventAppointmentConfirmed)
}

// Complete marks a confirmed appointment as done.
func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID) (Appointment, error) {
	return s.transition(ctx, appointmentID, StatusCompleted, "", notify.EventAppointmentCompleted)
}

// Cancel ends a scheduled or confirmed appointment. The slot reopens for
// rebooking unless the cancellation lands inside the notice window, in
// which case it is blocked.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, reason string) (Appointment, error) {
	unlock := s.locks.lock(appointmentID)
	defer unlock()

	appt, err := s.ledger.Get(appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCancelled)
	}

	now := s.now()
	s.releaseSlot(appt.SlotID, now)

	appt.Status = StatusCancelled
	appt.Reason = reason
	appt.UpdatedAt = now
	s.ledger.Put(appt)

	s.publish(ctx, notify.EventAppointmentCancelled, appt, reason)
	return appt, nil
}

// Reschedule moves a booking to a new slot: the new slot is held and
// booked for the same patient, then the old record flips to rescheduled
// and the new scheduled record is written in the same ledger commit.
// On any failure the original appointment is untouched and the interim
// hold is released.
func (s *Service) Reschedule(ctx context.Context, appointmentID, newSlotID uuid.UUID) (Appointment, error) {
	unlock := s.locks.lock(appointmentID)
	defer unlock()

	old, err := s.ledger.Get(appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if !CanTransition(old.Status, StatusRescheduled) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Status, StatusRescheduled)
	}
	if newSlotID == old.SlotID {
		return Appointment{}, fmt.Errorf("%w: new slot equals current slot", ErrInvalidInput)
	}

	now := s.now()
	h, err := s.slots.Hold(newSlotID, old.PatientID, s.cfg.DefaultHoldTTL, now)
	if err != nil {
		return Appointment{}, err
	}
	booked, err := s.slots.ConsumeHold(h.Token, old.PatientID, now)
	if err != nil {
		s.slots.ReleaseHold(h.Token)
		return Appointment{}, err
	}

	next := Appointment{
		ID:           uuid.New(),
		PatientID:    old.PatientID,
		SpecialistID: booked.SpecialistID,
		SlotID:       booked.ID,
		Mode:         old.Mode,
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	old.Status = StatusRescheduled
	old.RescheduledTo = next.ID
	old.UpdatedAt = now

	// Both records land in one ledger commit: readers never see the old
	// appointment rescheduled without its successor, or vice versa.
	s.ledger.PutPair(old, next)

	s.releaseSlot(old.SlotID, now)

	s.publish(ctx, notify.EventAppointmentRescheduled, old, "")
	s.publish(ctx, notify.EventAppointmentScheduled, next, "")
	return next, nil
}

func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (Appointment, error) {
	return s.ledger.Get(appointmentID)
}

// ListAppointments returns all appointments where the party appears in
// the given role, including retained cancelled/rescheduled records.
func (s *Service) ListAppointments(ctx context.Context, partyID uuid.UUID, role Role) ([]Appointment, error) {
	if partyID == uuid.Nil {
		return nil, fmt.Errorf("%w: party id is required", ErrInvalidInput)
	}
	if !ValidRole(string(role)) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return s.ledger.ListByParty(partyID, role), nil
}

// ListOpenSlots exposes the specialist's bookable slots.
func (s *Service) ListOpenSlots(ctx context.Context, specialistID uuid.UUID, from, to time.Time) ([]slot.Slot, error) {
	if _, err := s.dir.Get(ctx, specialistID); err != nil {
		return nil, err
	}
	now := s.now()
	if from.IsZero() {
		from = now
	}
	if to.IsZero() {
		to = from.Add(21 * 24 * time.Hour)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: date range is empty", ErrInvalidInput)
	}
	return s.slots.ListOpen(specialistID, from, to, now), nil
}

// transition applies a single-appointment status edge under the
// appointment's lock.
func (s *Service) transition(ctx context.Context, appointmentID uuid.UUID, to Status, reason string, ev notify.EventType) (Appointment, error) {
	unlock := s.locks.lock(appointmentID)
	defer unlock()

	appt, err := s.ledger.Get(appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if !CanTransition(appt.Status, to) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	appt.Status = to
	if reason != "" {
		appt.Reason = reason
	}
	appt.UpdatedAt = s.now()
	s.ledger.Put(appt)

	s.publish(ctx, ev, appt, reason)
	return appt, nil
}

// releaseSlot returns a booked slot to the pool per the cancel policy.
func (s *Service) releaseSlot(slotID uuid.UUID, now time.Time) {
	sl, err := s.slots.Get(slotID)
	if err != nil {
		s.logger.Error("release slot: lookup failed", "slot_id", slotID, "error", err)
		return
	}
	reopen := sl.Start.Sub(now) > s.cfg.CancelNoticeWindow
	if err := s.slots.ReleaseBooked(slotID, reopen); err != nil {
		s.logger.Error("release slot failed", "slot_id", slotID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, t notify.EventType, appt Appointment, detail string) {
	s.notifier.Publish(ctx, notify.Event{
		Type:          t,
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		PatientID:     appt.PatientID,
		SpecialistID:  appt.SpecialistID,
		At:            s.now(),
		Detail:        detail,
	})
}

func holdOutcome(err error) string {
	switch {
	case errors.Is(err, slot.ErrSlotUnavailable):
		return "conflict"
	case errors.Is(err, slot.ErrSlotNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func confirmOutcome(err error) string {
	switch {
	case errors.Is(err, slot.ErrHoldExpired):
		return "expired"
	case errors.Is(err, slot.ErrHoldMismatch):
		return "mismatch"
	case errors.Is(err, slot.ErrHoldNotFound):
		return "not_found"
	default:
		return "error"
	}
}

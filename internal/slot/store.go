package slot

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("slot is not open")
	ErrHoldNotFound    = errors.New("hold token not found")
	ErrHoldMismatch    = errors.New("hold token does not belong to this patient")
	ErrHoldExpired     = errors.New("hold has expired")
)

// entry pairs a slot with its own lock so contention on one slot never
// serializes operations on another.
type entry struct {
	mu   sync.Mutex
	slot Slot
}

// Store is the authoritative in-process slot state. Lock order is fixed:
// Store.mu (map membership) before entry.mu (slot state) before tokens.mu
// (token index); no path takes them in any other order.
type Store struct {
	mu     sync.RWMutex
	slots  map[uuid.UUID]*entry
	bySpec map[uuid.UUID][]uuid.UUID

	tokens struct {
		sync.Mutex
		bySlot map[string]uuid.UUID // token -> slot id
	}
}

func NewStore() *Store {
	s := &Store{
		slots:  make(map[uuid.UUID]*entry),
		bySpec: make(map[uuid.UUID][]uuid.UUID),
	}
	s.tokens.bySlot = make(map[string]uuid.UUID)
	return s
}

// Add registers a slot. Slots with a zero status are registered open.
func (s *Store) Add(sl Slot) {
	if sl.Status == "" {
		sl.Status = StatusOpen
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slots[sl.ID]; exists {
		return
	}
	s.slots[sl.ID] = &entry{slot: sl}
	s.bySpec[sl.SpecialistID] = append(s.bySpec[sl.SpecialistID], sl.ID)
}

func (s *Store) lookup(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.slots[id]
	return e, ok
}

// Get returns a copy of the slot.
func (s *Store) Get(id uuid.UUID) (Slot, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Slot{}, ErrSlotNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySlot(e.slot), nil
}

// Hold atomically transitions an open slot to held and returns the hold.
// A slot whose previous hold has expired counts as open; the stale token
// is invalidated as part of the takeover. Exactly one of any set of
// concurrent callers wins; the rest observe ErrSlotUnavailable.
func (s *Store) Hold(slotID, patientID uuid.UUID, ttl time.Duration, now time.Time) (Hold, error) {
	e, ok := s.lookup(slotID)
	if !ok {
		return Hold{}, ErrSlotNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.slot.Status {
	case StatusOpen:
		// fall through to take the hold
	case StatusHeld:
		if e.slot.Hold == nil || !e.slot.Hold.Expired(now) {
			return Hold{}, ErrSlotUnavailable
		}
		s.dropToken(e.slot.Hold.Token)
	default:
		return Hold{}, ErrSlotUnavailable
	}

	h := Hold{
		Token:     uuid.NewString(),
		PatientID: patientID,
		ExpiresAt: now.Add(ttl),
	}
	e.slot.Status = StatusHeld
	e.slot.Hold = &h
	s.registerToken(h.Token, slotID)

	return h, nil
}

// ConsumeHold validates a hold token for the given patient and, on
// success, books the slot and invalidates the token in one critical
// section. An expired token reopens the slot as a side effect.
func (s *Store) ConsumeHold(token string, patientID uuid.UUID, now time.Time) (Slot, error) {
	slotID, ok := s.tokenSlot(token)
	if !ok {
		return Slot{}, ErrHoldNotFound
	}
	e, ok := s.lookup(slotID)
	if !ok {
		return Slot{}, ErrHoldNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check under the slot lock: the token may have been reaped or
	// consumed between the index lookup and here.
	if e.slot.Status != StatusHeld || e.slot.Hold == nil || e.slot.Hold.Token != token {
		return Slot{}, ErrHoldNotFound
	}
	if e.slot.Hold.PatientID != patientID {
		return Slot{}, ErrHoldMismatch
	}
	if e.slot.Hold.Expired(now) {
		s.dropToken(token)
		e.slot.Status = StatusOpen
		e.slot.Hold = nil
		return Slot{}, ErrHoldExpired
	}

	s.dropToken(token)
	e.slot.Status = StatusBooked
	e.slot.Hold = nil

	return copySlot(e.slot), nil
}

// ReleaseHold cancels a live hold and reopens the slot. It is a no-op if
// the slot has already moved on.
func (s *Store) ReleaseHold(token string) {
	slotID, ok := s.tokenSlot(token)
	if !ok {
		return
	}
	e, ok := s.lookup(slotID)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot.Status != StatusHeld || e.slot.Hold == nil || e.slot.Hold.Token != token {
		return
	}
	s.dropToken(token)
	e.slot.Status = StatusOpen
	e.slot.Hold = nil
}

// ReleaseBooked releases a booked slot after its appointment was
// cancelled or rescheduled: reopened when rebooking is allowed, blocked
// otherwise.
func (s *Store) ReleaseBooked(slotID uuid.UUID, reopen bool) error {
	e, ok := s.lookup(slotID)
	if !ok {
		return ErrSlotNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot.Status != StatusBooked {
		return ErrSlotUnavailable
	}
	if reopen {
		e.slot.Status = StatusOpen
	} else {
		e.slot.Status = StatusBlocked
	}
	return nil
}

// ListOpen returns open slots for a specialist within [from, to), soonest
// first. Slots whose hold has expired but not yet been reaped count as
// open; they show as available and the takeover in Hold settles the race.
func (s *Store) ListOpen(specialistID uuid.UUID, from, to time.Time, now time.Time) []Slot {
	ids := s.specSlots(specialistID)

	var out []Slot
	for _, id := range ids {
		e, ok := s.lookup(id)
		if !ok {
			continue
		}
		e.mu.Lock()
		sl := e.slot
		open := sl.Status == StatusOpen ||
			(sl.Status == StatusHeld && sl.Hold != nil && sl.Hold.Expired(now))
		if open && !sl.Start.Before(from) && sl.Start.Before(to) {
			c := copySlot(sl)
			c.Status = StatusOpen
			c.Hold = nil
			out = append(out, c)
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// EarliestOpen returns the start time of the specialist's soonest open
// slot at or after now, or false when none exists.
func (s *Store) EarliestOpen(specialistID uuid.UUID, now time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false

	for _, id := range s.specSlots(specialistID) {
		e, ok := s.lookup(id)
		if !ok {
			continue
		}
		e.mu.Lock()
		sl := e.slot
		open := sl.Status == StatusOpen ||
			(sl.Status == StatusHeld && sl.Hold != nil && sl.Hold.Expired(now))
		if open && !sl.Start.Before(now) && (!found || sl.Start.Before(earliest)) {
			earliest = sl.Start
			found = true
		}
		e.mu.Unlock()
	}

	return earliest, found
}

// ReapExpired reopens every held slot whose hold expired before now and
// returns the reclaimed slots. It is idempotent and safe to run
// concurrently with Hold and ConsumeHold: a slot that moved on since the
// scan is simply skipped.
func (s *Store) ReapExpired(now time.Time) []Slot {
	s.mu.RLock()
	candidates := make([]*entry, 0)
	for _, e := range s.slots {
		candidates = append(candidates, e)
	}
	s.mu.RUnlock()

	var reaped []Slot
	for _, e := range candidates {
		e.mu.Lock()
		if e.slot.Status == StatusHeld && e.slot.Hold != nil && e.slot.Hold.Expired(now) {
			s.dropToken(e.slot.Hold.Token)
			e.slot.Status = StatusOpen
			e.slot.Hold = nil
			reaped = append(reaped, copySlot(e.slot))
		}
		e.mu.Unlock()
	}
	return reaped
}

func (s *Store) specSlots(specialistID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, len(s.bySpec[specialistID]))
	copy(ids, s.bySpec[specialistID])
	return ids
}

func (s *Store) registerToken(token string, slotID uuid.UUID) {
	s.tokens.Lock()
	defer s.tokens.Unlock()
	s.tokens.bySlot[token] = slotID
}

func (s *Store) dropToken(token string) {
	s.tokens.Lock()
	defer s.tokens.Unlock()
	delete(s.tokens.bySlot, token)
}

func (s *Store) tokenSlot(token string) (uuid.UUID, bool) {
	s.tokens.Lock()
	defer s.tokens.Unlock()
	id, ok := s.tokens.bySlot[token]
	return id, ok
}

func copySlot(sl Slot) Slot {
	c := sl
	if sl.Hold != nil {
		h := *sl.Hold
		c.Hold = &h
	}
	return c
}

package booking

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Ledger is the append-only appointment record. Cancelled and
// rescheduled appointments stay in the ledger for audit.
type Ledger struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]Appointment
}

func NewLedger() *Ledger {
	return &Ledger{appts: make(map[uuid.UUID]Appointment)}
}

func (l *Ledger) Put(a Appointment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appts[a.ID] = a
}

// PutPair writes two appointments under one critical section so a
// reschedule's old and new records become visible together.
func (l *Ledger) PutPair(a, b Appointment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appts[a.ID] = a
	l.appts[b.ID] = b
}

func (l *Ledger) Get(id uuid.UUID) (Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.appts[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return a, nil
}

// ListByParty returns the appointments where the given party appears in
// the given role, oldest first.
func (l *Ledger) ListByParty(partyID uuid.UUID, role Role) []Appointment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Appointment
	for _, a := range l.appts {
		switch role {
		case RolePatient:
			if a.PatientID == partyID {
				out = append(out, a)
			}
		case RoleSpecialist:
			if a.SpecialistID == partyID {
				out = append(out, a)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

package directory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var ErrSpecialistNotFound = errors.New("specialist not found")

// Directory is the read-only specialist catalog consumed by the matcher
// and the booking service.
type Directory interface {
	// Snapshot returns a read-consistent copy of all specialists.
	Snapshot(ctx context.Context) ([]Specialist, error)
	Get(ctx context.Context, id uuid.UUID) (*Specialist, error)
}

// MemoryDirectory holds the catalog in process. It is created at service
// start and torn down with it, so independent deployments and tests never
// share state.
type MemoryDirectory struct {
	mu          sync.RWMutex
	specialists map[uuid.UUID]Specialist
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{specialists: make(map[uuid.UUID]Specialist)}
}

// Put inserts or replaces a specialist record.
func (d *MemoryDirectory) Put(s Specialist) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specialists[s.ID] = s
}

func (d *MemoryDirectory) Snapshot(ctx context.Context) ([]Specialist, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Specialist, 0, len(d.specialists))
	for _, s := range d.specialists {
		out = append(out, s)
	}
	// Deterministic order keeps downstream ranking stable.
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (d *MemoryDirectory) Get(ctx context.Context, id uuid.UUID) (*Specialist, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.specialists[id]
	if !ok {
		return nil, ErrSpecialistNotFound
	}
	return &s, nil
}

package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate/scheduling/internal/notify"
	"github.com/mindmate/scheduling/internal/slot"
)

func TestReaperReclaimsExpiredHolds(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.HoldSlot(ctx, f.slotID, f.patient, time.Second)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)

	r := NewReaper(f.slots, time.Minute, f.events, nil, nil).WithClock(f.clock.Now)
	assert.Equal(t, 1, r.RunOnce(ctx))

	sl, err := f.slots.Get(f.slotID)
	require.NoError(t, err)
	assert.Equal(t, slot.StatusOpen, sl.Status)

	types := f.events.Types()
	assert.Equal(t, notify.EventHoldExpired, types[len(types)-1])

	// Idempotent.
	assert.Equal(t, 0, r.RunOnce(ctx))
}

func TestReaperSkipsConsumedHold(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.schedule(t)

	r := NewReaper(f.slots, time.Minute, f.events, nil, nil).WithClock(f.clock.Now)
	f.clock.Advance(time.Hour)
	assert.Equal(t, 0, r.RunOnce(ctx), "booked slot must not be reaped")

	sl, err := f.slots.Get(f.slotID)
	require.NoError(t, err)
	assert.Equal(t, slot.StatusBooked, sl.Status)
}

func TestReaperStartStop(t *testing.T) {
	store := slot.NewStore()
	r := NewReaper(store, 10*time.Millisecond, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	// Stop after Stop is a no-op, and a never-started reaper's Stop
	// must not block.
	r.Stop()
	NewReaper(store, time.Minute, nil, nil, nil).Stop()
}

func TestReaperRacesHoldSafely(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	r := NewReaper(f.slots, time.Minute, f.events, nil, nil).WithClock(f.clock.Now)

	// Expired hold, then a confirm and a reap race: the confirm wins by
	// takeover or the reaper reopens first; either way the slot ends
	// consistent and nothing panics.
	for i := 0; i < 20; i++ {
		sl := slot.Slot{
			ID:           uuid.New(),
			SpecialistID: f.specialist.ID,
			Start:        baseTime.Add(time.Duration(100+i) * time.Hour),
			End:          baseTime.Add(time.Duration(101+i) * time.Hour),
		}
		f.slots.Add(sl)
		_, err := f.svc.HoldSlot(ctx, sl.ID, uuid.New(), time.Second)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Second)

		done := make(chan struct{})
		go func() {
			r.RunOnce(ctx)
			close(done)
		}()
		_, _ = f.svc.HoldSlot(ctx, sl.ID, uuid.New(), time.Minute)
		<-done

		got, err := f.slots.Get(sl.ID)
		require.NoError(t, err)
		assert.Contains(t, []slot.Status{slot.StatusOpen, slot.StatusHeld}, got.Status)
	}
}

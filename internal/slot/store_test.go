package slot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(specialist uuid.UUID, start time.Time) Slot {
	return Slot{
		ID:           uuid.New(),
		SpecialistID: specialist,
		Start:        start,
		End:          start.Add(time.Hour),
	}
}

func TestHoldOpenSlot(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	patient := uuid.New()
	h, err := store.Hold(sl.ID, patient, 10*time.Minute, now)
	require.NoError(t, err)
	assert.NotEmpty(t, h.Token)
	assert.Equal(t, patient, h.PatientID)
	assert.Equal(t, now.Add(10*time.Minute), h.ExpiresAt)

	got, err := store.Get(sl.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHeld, got.Status)
	require.NotNil(t, got.Hold)
	assert.Equal(t, h.Token, got.Hold.Token)
}

func TestHoldUnknownSlot(t *testing.T) {
	store := NewStore()
	_, err := store.Hold(uuid.New(), uuid.New(), time.Minute, time.Now())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestConcurrentHoldsExactlyOneWinner(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	const n = 64
	var wg sync.WaitGroup
	errs := make([]error, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Hold(sl.ID, uuid.New(), 10*time.Minute, now)
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
}

func TestContentionOnDifferentSlotsAllWin(t *testing.T) {
	store := NewStore()
	now := time.Now()
	spec := uuid.New()

	const n = 32
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		sl := newSlot(spec, now.Add(time.Duration(i+1)*time.Hour))
		store.Add(sl)
		ids[i] = sl.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Hold(ids[i], uuid.New(), time.Minute, now)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "slot %d", i)
	}
}

func TestConsumeHoldBooksSlotOnce(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	patient := uuid.New()
	h, err := store.Hold(sl.ID, patient, 10*time.Minute, now)
	require.NoError(t, err)

	booked, err := store.ConsumeHold(h.Token, patient, now)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, booked.Status)
	assert.Nil(t, booked.Hold)

	// Token is single use.
	_, err = store.ConsumeHold(h.Token, patient, now)
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestConsumeHoldWrongPatient(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	h, err := store.Hold(sl.ID, uuid.New(), 10*time.Minute, now)
	require.NoError(t, err)

	_, err = store.ConsumeHold(h.Token, uuid.New(), now)
	assert.ErrorIs(t, err, ErrHoldMismatch)

	// The hold survives a mismatch.
	got, err := store.Get(sl.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHeld, got.Status)
}

func TestConsumeExpiredHoldReopensSlot(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	patient := uuid.New()
	h, err := store.Hold(sl.ID, patient, time.Second, now)
	require.NoError(t, err)

	_, err = store.ConsumeHold(h.Token, patient, now.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrHoldExpired)

	got, err := store.Get(sl.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, got.Status)

	// A different patient can now take the slot.
	_, err = store.Hold(sl.ID, uuid.New(), time.Minute, now.Add(2*time.Second))
	assert.NoError(t, err)
}

func TestExpiredHoldIsTakeoverable(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	stale, err := store.Hold(sl.ID, uuid.New(), time.Second, now)
	require.NoError(t, err)

	// No reaper run in between: Hold itself treats the expired hold as open.
	fresh, err := store.Hold(sl.ID, uuid.New(), time.Minute, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, stale.Token, fresh.Token)

	// The stale token was invalidated by the takeover.
	_, err = store.ConsumeHold(stale.Token, stale.PatientID, now.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestReapExpired(t *testing.T) {
	store := NewStore()
	now := time.Now()
	spec := uuid.New()

	expired := newSlot(spec, now.Add(time.Hour))
	live := newSlot(spec, now.Add(2*time.Hour))
	booked := newSlot(spec, now.Add(3*time.Hour))
	store.Add(expired)
	store.Add(live)
	store.Add(booked)

	_, err := store.Hold(expired.ID, uuid.New(), time.Second, now)
	require.NoError(t, err)
	_, err = store.Hold(live.ID, uuid.New(), time.Hour, now)
	require.NoError(t, err)

	patient := uuid.New()
	h, err := store.Hold(booked.ID, patient, time.Hour, now)
	require.NoError(t, err)
	_, err = store.ConsumeHold(h.Token, patient, now)
	require.NoError(t, err)

	reaped := store.ReapExpired(now.Add(2 * time.Second))
	require.Len(t, reaped, 1)
	assert.Equal(t, expired.ID, reaped[0].ID)

	// Idempotent: a second run finds nothing.
	assert.Empty(t, store.ReapExpired(now.Add(2*time.Second)))

	got, err := store.Get(live.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHeld, got.Status)

	got, err = store.Get(booked.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, got.Status)
}

func TestReleaseHold(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	h, err := store.Hold(sl.ID, uuid.New(), time.Minute, now)
	require.NoError(t, err)

	store.ReleaseHold(h.Token)

	got, err := store.Get(sl.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, got.Status)

	// Releasing again is harmless.
	store.ReleaseHold(h.Token)
}

func TestReleaseBooked(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	patient := uuid.New()
	h, err := store.Hold(sl.ID, patient, time.Minute, now)
	require.NoError(t, err)
	_, err = store.ConsumeHold(h.Token, patient, now)
	require.NoError(t, err)

	require.NoError(t, store.ReleaseBooked(sl.ID, true))
	got, _ := store.Get(sl.ID)
	assert.Equal(t, StatusOpen, got.Status)

	// Not booked anymore.
	assert.ErrorIs(t, store.ReleaseBooked(sl.ID, true), ErrSlotUnavailable)
}

func TestReleaseBookedBlocks(t *testing.T) {
	store := NewStore()
	now := time.Now()
	sl := newSlot(uuid.New(), now.Add(time.Hour))
	store.Add(sl)

	patient := uuid.New()
	h, err := store.Hold(sl.ID, patient, time.Minute, now)
	require.NoError(t, err)
	_, err = store.ConsumeHold(h.Token, patient, now)
	require.NoError(t, err)

	require.NoError(t, store.ReleaseBooked(sl.ID, false))
	got, _ := store.Get(sl.ID)
	assert.Equal(t, StatusBlocked, got.Status)

	_, err = store.Hold(sl.ID, uuid.New(), time.Minute, now)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestListOpenAndEarliestOpen(t *testing.T) {
	store := NewStore()
	now := time.Now()
	spec := uuid.New()

	late := newSlot(spec, now.Add(48*time.Hour))
	soon := newSlot(spec, now.Add(2*time.Hour))
	held := newSlot(spec, now.Add(time.Hour))
	store.Add(late)
	store.Add(soon)
	store.Add(held)

	_, err := store.Hold(held.ID, uuid.New(), time.Hour, now)
	require.NoError(t, err)

	open := store.ListOpen(spec, now, now.Add(72*time.Hour), now)
	require.Len(t, open, 2)
	assert.Equal(t, soon.ID, open[0].ID)
	assert.Equal(t, late.ID, open[1].ID)

	earliest, ok := store.EarliestOpen(spec, now)
	require.True(t, ok)
	assert.Equal(t, soon.Start, earliest)

	_, ok = store.EarliestOpen(uuid.New(), now)
	assert.False(t, ok)
}

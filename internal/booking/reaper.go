package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindmate/scheduling/internal/metrics"
	"github.com/mindmate/scheduling/internal/notify"
	"github.com/mindmate/scheduling/internal/slot"
	"github.com/mindmate/scheduling/pkg/logging"
)

// Reaper reclaims expired holds on a fixed interval. It is a dedicated
// recurring task with its own shutdown hook, decoupled from request
// handling: Stop waits for an in-flight run to finish.
type Reaper struct {
	slots    *slot.Store
	interval time.Duration
	notifier notify.Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

func NewReaper(slots *slot.Store, interval time.Duration, notifier notify.Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Reaper{
		slots:    slots,
		interval: interval,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithClock overrides the reaper clock, for tests.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Start launches the reap loop: one run immediately, then one per
// interval until Stop is called or ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.loop(ctx)
	})
}

// Stop signals the loop and blocks until the in-flight run, if any,
// has finished. Stopping a reaper that was never started is a no-op.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.done)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("hold reaper stopping", "reason", ctx.Err())
			return
		case <-r.stop:
			r.logger.Info("hold reaper stopping", "reason", "stop requested")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reap pass. Exported so operators and tests
// can force a pass without waiting for the ticker.
func (r *Reaper) RunOnce(ctx context.Context) int {
	now := r.now()
	reaped := r.slots.ReapExpired(now)
	if len(reaped) == 0 {
		return 0
	}

	r.metrics.ObserveReaped(len(reaped))
	r.logger.Info("reclaimed expired holds", "count", len(reaped))

	for _, sl := range reaped {
		r.notifier.Publish(ctx, notify.Event{
			Type:         notify.EventHoldExpired,
			SlotID:       sl.ID,
			SpecialistID: sl.SpecialistID,
			At:           now,
		})
	}
	return len(reaped)
}

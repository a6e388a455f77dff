// Package runner drives fsm processing groups on a wall-clock interval.
// Each group gets its own loop so ticks within a group stay serialized
// while different groups tick concurrently, matching the scheduler's
// concurrency contract.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/amp-labs/amp-fsm/fsm"
)

const defaultInterval = 50 * time.Millisecond

// Runner ticks one or more processing groups on an interval using a shared
// worker pool.
type Runner struct {
	scheduler *fsm.Scheduler
	interval  time.Duration
	groups    []string

	mu      sync.Mutex
	pool    pond.Pool
	stop    chan struct{}
	started bool
}

// New creates a Runner ticking the given groups every interval. An interval
// of zero or below falls back to a 50ms default.
func New(scheduler *fsm.Scheduler, interval time.Duration, groups ...string) *Runner {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Runner{
		scheduler: scheduler,
		interval:  interval,
		groups:    groups,
	}
}

// Start launches one tick loop per group. It is a no-op when already
// started. The loops stop when Stop is called or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || len(r.groups) == 0 {
		return
	}

	r.started = true
	r.stop = make(chan struct{})
	r.pool = pond.NewPool(len(r.groups))

	stop := r.stop

	for _, group := range r.groups {
		r.pool.Submit(func() {
			r.tickLoop(ctx, stop, group)
		})
	}
}

// Stop halts all tick loops and waits for in-flight ticks to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	close(r.stop)
	r.pool.StopAndWait()
	r.started = false
}

func (r *Runner) tickLoop(ctx context.Context, stop <-chan struct{}, group string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.scheduler.Tick(ctx, group); err != nil {
				slog.Warn("tick failed", "group", group, "error", err)
			}
		}
	}
}

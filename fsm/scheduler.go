package fsm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// Scheduler is the tick entry point for processing groups. One Tick call
// steps every qualifying Instance of the group sequentially, in
// Bucket/Instance order, then applies queued structural edits and evicts
// invalid or faulted Instances at a single safe point.
//
// Concurrent Tick calls for the same group are not supported; callers must
// serialize ticks per group. Ticks for different groups are independent and
// may run concurrently.
type Scheduler struct {
	registry   *Registry
	faults     *FaultTracker
	logger     Logger
	reporter   Reporter
	tickBudget time.Duration
}

// NewScheduler creates a Scheduler over the given Registry with a default
// fault tracker (DefaultFaultThreshold, monotonic counters), slog-backed
// logging and reporting, and no tick budget.
func NewScheduler(registry *Registry) *Scheduler {
	return &Scheduler{
		registry: registry,
		faults:   NewFaultTracker(DefaultFaultThreshold, FaultPolicyMonotonic),
		logger:   NewDefaultLogger(),
		reporter: NewSlogReporter(nil),
	}
}

// Registry returns the Registry this Scheduler ticks.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// FaultTracker returns the Scheduler's fault tracker.
func (s *Scheduler) FaultTracker() *FaultTracker {
	return s.faults
}

// SetFaultTracker replaces the fault tracker, e.g. to change the eviction
// threshold or the counter reset policy.
func (s *Scheduler) SetFaultTracker(tracker *FaultTracker) {
	if tracker != nil {
		s.faults = tracker
	}
}

// SetLogger sets the logger for tick-level events.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetReporter sets the collaborator receiving fault reports and performance
// warnings.
func (s *Scheduler) SetReporter(reporter Reporter) {
	if reporter != nil {
		s.reporter = reporter
		s.faults.SetReporter(reporter)
	}
}

// SetTickBudget sets the wall-clock budget for one Tick call. Exceeding it
// emits a non-fatal performance warning through the Reporter. Zero disables
// the check.
func (s *Scheduler) SetTickBudget(budget time.Duration) {
	s.tickBudget = budget
}

// Tick runs one scheduling pass over the named group:
//
//  1. Every Instance of every Bucket is checked for qualification against
//     its Definition's process rate.
//  2. Qualifying Instances whose host context is no longer valid are marked
//     for removal and skipped.
//  3. The rest are stepped; caught faults are routed to the fault tracker
//     and never abort the pass.
//  4. After the full pass, marked Instances are removed from their Buckets
//     (running the exit action owed to their current state).
//  5. Queued structural edits are drained.
func (s *Scheduler) Tick(ctx context.Context, group string) error {
	buckets, err := s.registry.groupBuckets(group)
	if err != nil {
		return err
	}

	start := time.Now()

	ctx, span := startTickSpan(ctx, group)
	defer span.End()

	stepped := 0

	for _, bucket := range buckets {
		for _, inst := range bucket.Instances() {
			if inst.isRemovalPending() {
				continue
			}

			if !inst.qualifies() {
				continue
			}

			if !inst.host.IsValid() {
				inst.markForRemoval(evictedByLiveness)

				continue
			}

			stepped++

			s.stepInstance(ctx, inst)
		}
	}

	evicted := s.removeMarked(ctx, buckets)

	for _, bucket := range buckets {
		bucket.def.drainEdits()
	}

	elapsed := time.Since(start)
	tickDuration.WithLabelValues(group).Observe(elapsed.Seconds())

	if s.tickBudget > 0 && elapsed > s.tickBudget {
		tickBudgetExceeded.WithLabelValues(group).Inc()
		s.reporter.Report(
			fmt.Sprintf("tick for group %q took %v, exceeding budget %v", group, elapsed, s.tickBudget),
			nil,
		)
	}

	s.logger.TickCompleted(ctx, group, elapsed, stepped, evicted)
	span.SetStatus(codes.Ok, "completed")

	return nil
}

// stepInstance steps one Instance behind the fault boundary: action and
// condition errors, as well as panics, are converted into recorded faults
// and never propagate past the scheduler.
func (s *Scheduler) stepInstance(ctx context.Context, inst *Instance) {
	ctx, span := startStepSpan(ctx, inst)
	defer span.End()

	err := s.runStep(ctx, inst)
	if err == nil {
		s.faults.RecordSuccess(inst)
		stepsTotal.WithLabelValues(inst.def.Group(), inst.def.Name(), "success").Inc()
		span.SetStatus(codes.Ok, "completed")

		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	stepsTotal.WithLabelValues(inst.def.Group(), inst.def.Name(), "fault").Inc()

	if s.faults.Record(inst, err) {
		inst.markForRemoval(evictedByFaults)
	}
}

// runStep invokes Instance.Step, converting panics from actions or
// conditions into errors.
func (s *Scheduler) runStep(ctx context.Context, inst *Instance) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()

	return inst.Step(ctx)
}

// removeMarked is the single safe point: it drops every marked Instance
// from its Bucket, runs the exit action it is owed, and forgets its fault
// counter. Removal itself never faults; a panicking exit action is reported
// and swallowed.
func (s *Scheduler) removeMarked(ctx context.Context, buckets []*Bucket) int {
	evicted := 0

	for _, bucket := range buckets {
		def := bucket.def

		for _, inst := range bucket.removeMarked() {
			evicted++
			reason := inst.removalReason()

			s.finalizeInstance(ctx, inst)
			s.faults.Forget(inst.ID())

			s.logger.InstanceEvicted(ctx, def.Name(), inst.ID(), string(reason))
			evictionsTotal.WithLabelValues(def.Group(), def.Name(), string(reason)).Inc()
			liveInstancesGauge.WithLabelValues(def.Group(), def.Name()).Dec()
		}
	}

	return evicted
}

func (s *Scheduler) finalizeInstance(ctx context.Context, inst *Instance) {
	defer func() {
		if r := recover(); r != nil {
			s.reporter.Report("exit action panicked during instance removal", fmt.Errorf("%w: %v", ErrActionPanic, r))
		}
	}()

	if err := inst.finalize(ctx); err != nil {
		s.reporter.Report("exit action failed during instance removal", err)
	}
}

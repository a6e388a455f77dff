package fsm

import (
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

// Reporter is the external error-reporting collaborator. It accepts a
// message plus an optional cause, and must never panic back into the core.
// Fault reports and performance warnings both flow through it.
type Reporter interface {
	Report(message string, cause error)
}

// SlogReporter reports through slog.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a Reporter backed by the given slog logger, or
// slog.Default() when nil.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogReporter{logger: logger}
}

func (r *SlogReporter) Report(message string, cause error) {
	if cause != nil {
		r.logger.Warn(message, "cause", cause)

		return
	}

	r.logger.Warn(message)
}

// FaultPolicy controls how per-Instance fault counters behave across
// fault-free ticks.
type FaultPolicy int

const (
	// FaultPolicyMonotonic accumulates faults for the Instance's lifetime.
	FaultPolicyMonotonic FaultPolicy = iota
	// FaultPolicyResetOnSuccess clears the Instance's counter after every
	// fault-free qualifying tick, so only consecutive faults evict.
	FaultPolicyResetOnSuccess
)

// DefaultFaultThreshold is the eviction threshold used when none is
// configured: an Instance is flagged for removal once its counter exceeds
// this many faults.
const DefaultFaultThreshold = 3

// FaultTracker maintains runtime-fault counters per Instance and per
// Definition and feeds the scheduler's eviction policy.
type FaultTracker struct {
	threshold int64
	policy    FaultPolicy
	reporter  Reporter

	mu           sync.Mutex
	byInstance   map[string]*atomic.Int64
	byDefinition map[string]*atomic.Int64
}

// NewFaultTracker creates a tracker with the given eviction threshold and
// counter policy. A threshold below 1 falls back to DefaultFaultThreshold.
func NewFaultTracker(threshold int, policy FaultPolicy) *FaultTracker {
	if threshold < 1 {
		threshold = DefaultFaultThreshold
	}

	return &FaultTracker{
		threshold:    int64(threshold),
		policy:       policy,
		reporter:     NewSlogReporter(nil),
		byInstance:   make(map[string]*atomic.Int64),
		byDefinition: make(map[string]*atomic.Int64),
	}
}

// SetReporter replaces the tracker's error-reporting collaborator.
func (t *FaultTracker) SetReporter(reporter Reporter) {
	if reporter != nil {
		t.reporter = reporter
	}
}

// Record counts one caught runtime fault against the Instance and its
// Definition, reports it, and returns true when the Instance's counter has
// exceeded the threshold and it should be flagged for removal.
func (t *FaultTracker) Record(inst *Instance, cause error) bool {
	instCount := t.counter(&t.byInstance, inst.ID()).Inc()
	t.counter(&t.byDefinition, inst.def.Name()).Inc()

	faultsTotal.WithLabelValues(inst.def.Group(), inst.def.Name()).Inc()

	t.reporter.Report("state machine instance fault", WrapDefinitionError(inst.def.Name(), inst.def.Group(), cause))

	return instCount > t.threshold
}

// RecordSuccess notes a fault-free qualifying tick for the Instance. Under
// FaultPolicyResetOnSuccess this clears the Instance's counter; under
// FaultPolicyMonotonic it is a no-op.
func (t *FaultTracker) RecordSuccess(inst *Instance) {
	if t.policy != FaultPolicyResetOnSuccess {
		return
	}

	t.counter(&t.byInstance, inst.ID()).Store(0)
}

// InstanceFaults returns the current fault count for an Instance ID.
func (t *FaultTracker) InstanceFaults(instanceID string) int64 {
	return t.counter(&t.byInstance, instanceID).Load()
}

// DefinitionFaults returns the accumulated fault count for a Definition
// name. Definition counters are always monotonic.
func (t *FaultTracker) DefinitionFaults(definition string) int64 {
	return t.counter(&t.byDefinition, definition).Load()
}

// Forget drops the per-Instance counter once the Instance has left its
// Bucket.
func (t *FaultTracker) Forget(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byInstance, instanceID)
}

func (t *FaultTracker) counter(table *map[string]*atomic.Int64, key string) *atomic.Int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := (*table)[key]
	if !ok {
		c = atomic.NewInt64(0)
		(*table)[key] = c
	}

	return c
}

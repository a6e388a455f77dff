// Package fsm models data-bearing objects as finite state machines. A
// reusable Definition (states, transitions, priority rules) is built once
// and driven by many independent Instances, each bound to its own host
// context, under a cooperative tick scheduler organized into named
// processing groups.
package fsm

import "context"

// HostContext is the capability contract a host data object must satisfy to
// be bound to an Instance. The core reads nothing else from the host.
type HostContext interface {
	// Name returns a stable display name for the host object.
	Name() string
	// IsValid reports whether the host object is still live. The scheduler
	// polls this once per qualifying tick; a false result evicts the
	// Instance at the next safe point.
	IsValid() bool
}

// Action is a unit of state behavior (enter, update or exit). A nil Action
// is a no-op.
type Action func(ctx context.Context, host HostContext) error

// Condition is a transition predicate over the host context. A nil
// Condition always fires.
type Condition func(ctx context.Context, host HostContext) (bool, error)

// Process-rate values controlling how often the scheduler steps an Instance.
const (
	// RateEveryTick steps the Instance on every Tick call for its group.
	RateEveryTick = -1
	// RateEventDriven never auto-steps the Instance; only explicit
	// EvaluateConditions or TransitionTo calls drive it.
	RateEventDriven = 0
)

// AnyState is the wildcard source for any-state transitions. Transitions
// from AnyState are evaluated before regular transitions and win ties.
const AnyState = "*"

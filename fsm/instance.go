package fsm

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// evictionReason explains why an Instance was flagged for removal.
type evictionReason string

const (
	evictedByCaller   evictionReason = "destroyed"
	evictedByLiveness evictionReason = "liveness"
	evictedByFaults   evictionReason = "fault_threshold"
)

// Instance is a live binding of a shared Definition to one exclusively-owned
// host context. It tracks its current state and whether that state's enter
// action has run yet.
//
// At most one of Step, TransitionTo, ResetToInitial, EvaluateConditions and
// Destroy executes at a time per Instance.
type Instance struct {
	id   string
	def  *Definition
	host HostContext

	mu             sync.Mutex
	currentState   string
	entered        bool
	ticksSinceStep int

	removal atomic.String
}

func newInstance(def *Definition, host HostContext) *Instance {
	return &Instance{
		id:           uuid.NewString(),
		def:          def,
		host:         host,
		currentState: def.InitialState(),
	}
}

// ID returns the Instance's unique identifier.
func (i *Instance) ID() string {
	return i.id
}

// Definition returns the shared Definition this Instance is bound to.
func (i *Instance) Definition() *Definition {
	return i.def
}

// Host returns the bound host context.
func (i *Instance) Host() HostContext {
	return i.host
}

// CurrentState returns the name of the Instance's active state.
func (i *Instance) CurrentState() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.currentState
}

// Step advances the Instance by one tick using the Definition's step
// algorithm. It is invoked by the scheduler on qualifying ticks.
func (i *Instance) Step(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRemovalPending() {
		return ErrInstanceDestroyed
	}

	return i.def.step(ctx, i)
}

// TransitionTo forces an unconditional transition: it skips condition
// evaluation, synchronously runs exit on the current state and enter on the
// target within this call, and marks the target entered immediately. Use it
// for externally triggered overrides where the one-tick entry delay of the
// tick path is undesirable.
func (i *Instance) TransitionTo(ctx context.Context, stateName string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRemovalPending() {
		return ErrInstanceDestroyed
	}

	return i.forceTransition(ctx, stateName)
}

// ResetToInitial forces a transition back to the Definition's initial state
// via the same forced path as TransitionTo.
func (i *Instance) ResetToInitial(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRemovalPending() {
		return ErrInstanceDestroyed
	}

	return i.forceTransition(ctx, i.def.InitialState())
}

// EvaluateConditions runs the transition-evaluation portion of Step out of
// band: any-state transitions first, then the current state's regular
// transitions. It reports whether a transition fired. This is the driving
// call for event-driven Instances (process rate RateEventDriven), which the
// scheduler never steps on its own.
func (i *Instance) EvaluateConditions(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRemovalPending() {
		return false, ErrInstanceDestroyed
	}

	target, found, err := i.def.evaluateTransitions(ctx, i)
	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	if err := i.def.applyTransition(ctx, i, target); err != nil {
		return false, err
	}

	return true, nil
}

// Destroy runs the current state's exit action exactly once and flags the
// Instance for removal from its Bucket at the next safe point.
func (i *Instance) Destroy(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRemovalPending() {
		return ErrInstanceDestroyed
	}

	err := i.runExit(ctx)

	i.markForRemoval(evictedByCaller)

	return err
}

// forceTransition is the shared forced path: exit the current state (if it
// was entered), enter the target, and mark it entered in the same call.
func (i *Instance) forceTransition(ctx context.Context, target string) error {
	targetState, ok := i.def.lookupState(target)
	if !ok {
		return WrapStateError(target, ErrStateNotFound)
	}

	if i.entered {
		current, ok := i.def.lookupState(i.currentState)
		if !ok {
			return WrapStateError(i.currentState, ErrStateNotFound)
		}

		if err := current.exit(ctx, i.host); err != nil {
			return WrapStateError(i.currentState, err)
		}
	}

	from := i.currentState
	i.currentState = target

	if err := targetState.enter(ctx, i.host); err != nil {
		i.entered = false

		return WrapStateError(target, err)
	}

	i.entered = true

	i.def.logger.TransitionExecuted(ctx, i.def.name, i.id, from, target)
	i.def.logger.StateEntered(ctx, i.def.name, i.id, target)
	transitionsTotal.WithLabelValues(i.def.group, i.def.name, from, target).Inc()

	return nil
}

// runExit runs the current state's exit action if the state was entered,
// which makes the exit exactly-once across Destroy and safe-point removal.
func (i *Instance) runExit(ctx context.Context) error {
	if !i.entered {
		return nil
	}

	i.entered = false

	state, ok := i.def.lookupState(i.currentState)
	if !ok {
		return WrapStateError(i.currentState, ErrStateNotFound)
	}

	if err := state.exit(ctx, i.host); err != nil {
		return WrapStateError(i.currentState, err)
	}

	return nil
}

// finalize runs the exit action owed to the current state before the
// Instance leaves its Bucket. Exactly-once with Destroy via the entered
// flag. Called by the scheduler at the safe point.
func (i *Instance) finalize(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.runExit(ctx)
}

// qualifies decides whether this tick steps the Instance, per its
// Definition's process rate. Skip counting is per Instance.
func (i *Instance) qualifies() bool {
	switch rate := i.def.ProcessRate(); {
	case rate == RateEveryTick:
		return true
	case rate == RateEventDriven:
		return false
	default:
		i.ticksSinceStep++
		if i.ticksSinceStep >= rate {
			i.ticksSinceStep = 0

			return true
		}

		return false
	}
}

func (i *Instance) markForRemoval(reason evictionReason) {
	i.removal.CompareAndSwap("", string(reason))
}

func (i *Instance) isRemovalPending() bool {
	return i.removal.Load() != ""
}

func (i *Instance) removalReason() evictionReason {
	return evictionReason(i.removal.Load())
}

package fsm

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// Definition is the reusable blueprint of states and transitions for one
// named state machine. It is shared read-mostly by all of its Instances;
// structural edits submitted while Instances are live are queued and applied
// only at the scheduler's safe point between ticks.
type Definition struct {
	name         string
	group        string
	initialState string
	processRate  int

	mu             sync.RWMutex
	states         map[string]*State
	transitions    map[string][]Transition
	anyTransitions []Transition

	liveInstances atomic.Int64

	editMu       sync.Mutex
	pendingEdits []edit

	logger Logger
}

// NewDefinition creates an empty Definition for the given processing group.
// A process rate below RateEveryTick is coerced to RateEventDriven with a
// reported warning rather than failing.
func NewDefinition(name string, processRate int, group string) (*Definition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	if strings.TrimSpace(group) == "" {
		return nil, ErrGroupRequired
	}

	if processRate < RateEveryTick {
		slog.Warn("invalid process rate, coercing to event-driven",
			"definition", name,
			"group", group,
			"process_rate", processRate,
		)

		processRate = RateEventDriven
	}

	return &Definition{
		name:        name,
		group:       group,
		processRate: processRate,
		states:      make(map[string]*State),
		transitions: make(map[string][]Transition),
		logger:      NewDefaultLogger(),
	}, nil
}

// Name returns the Definition's name, unique within its group.
func (d *Definition) Name() string {
	return d.name
}

// Group returns the processing group this Definition belongs to.
func (d *Definition) Group() string {
	return d.group
}

// InitialState returns the name of the state new Instances start in.
func (d *Definition) InitialState() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.initialState
}

// ProcessRate returns the Definition's tick cadence: RateEveryTick,
// RateEventDriven, or a positive skip count.
func (d *Definition) ProcessRate() int {
	return d.processRate
}

// SetLogger sets the logger used for step-level events of all Instances of
// this Definition.
func (d *Definition) SetLogger(logger Logger) {
	d.logger = logger
}

// LiveInstances returns the number of Instances currently bound to this
// Definition.
func (d *Definition) LiveInstances() int64 {
	return d.liveInstances.Load()
}

// SetInitialState sets the state new Instances start in. The state must
// already be registered.
func (d *Definition) SetInitialState(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.states[name]; !ok {
		return WrapStateError(name, ErrInitialStateNotFound)
	}

	d.initialState = name

	return nil
}

// StateNames returns the names of all registered states, excluding states
// still waiting in the deferred edit queue.
func (d *Definition) StateNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.states))
	for name := range d.states {
		names = append(names, name)
	}

	return names
}

// lookupState returns the named state.
func (d *Definition) lookupState(name string) (*State, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state, ok := d.states[name]

	return state, ok
}

// hasState reports whether the named state exists, counting states pending
// in the deferred edit queue. Used to validate edits submitted mid-tick.
func (d *Definition) hasState(name string) bool {
	d.mu.RLock()
	_, ok := d.states[name]
	d.mu.RUnlock()

	if ok {
		return true
	}

	d.editMu.Lock()
	defer d.editMu.Unlock()

	for _, e := range d.pendingEdits {
		if e.kind == editAddState && e.state.Name == name {
			return true
		}
	}

	return false
}

// step advances one Instance by one tick. The caller holds the Instance's
// lock. Order: enter (if the current state has not been entered yet), then
// update, then transition evaluation. A winning transition runs the current
// state's exit action and retargets the Instance, but the target's enter
// action is delayed to the next qualifying tick.
func (d *Definition) step(ctx context.Context, inst *Instance) error {
	state, ok := d.lookupState(inst.currentState)
	if !ok {
		return WrapStateError(inst.currentState, ErrStateNotFound)
	}

	host := inst.host

	if !inst.entered {
		if err := state.enter(ctx, host); err != nil {
			return WrapStateError(state.Name, err)
		}

		inst.entered = true

		d.logger.StateEntered(ctx, d.name, inst.id, state.Name)
	}

	// Update runs exactly once per qualifying tick, whether or not a
	// transition fires afterward.
	if err := state.update(ctx, host); err != nil {
		return WrapStateError(state.Name, err)
	}

	target, found, err := d.evaluateTransitions(ctx, inst)
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	return d.applyTransition(ctx, inst, target)
}

// evaluateTransitions finds the winning transition for the Instance's
// current state: any-state transitions first, then regular transitions, each
// list in insertion order, first true condition wins.
func (d *Definition) evaluateTransitions(ctx context.Context, inst *Instance) (string, bool, error) {
	d.mu.RLock()
	anyList := d.anyTransitions
	regular := d.transitions[inst.currentState]
	d.mu.RUnlock()

	for _, t := range anyList {
		fired, err := t.evaluate(ctx, inst.host)
		if err != nil {
			return "", false, WrapTransitionError(inst.currentState, t.To, err)
		}

		if fired {
			return t.To, true, nil
		}
	}

	for _, t := range regular {
		fired, err := t.evaluate(ctx, inst.host)
		if err != nil {
			return "", false, WrapTransitionError(t.From, t.To, err)
		}

		if fired {
			return t.To, true, nil
		}
	}

	return "", false, nil
}

// applyTransition exits the current state and retargets the Instance. The
// entered flag is cleared so the target's enter action runs on the next
// qualifying tick, never in the same tick as this exit.
func (d *Definition) applyTransition(ctx context.Context, inst *Instance, target string) error {
	state, ok := d.lookupState(inst.currentState)
	if !ok {
		return WrapStateError(inst.currentState, ErrStateNotFound)
	}

	if inst.entered {
		if err := state.exit(ctx, inst.host); err != nil {
			return WrapStateError(state.Name, err)
		}
	}

	from := inst.currentState
	inst.currentState = target
	inst.entered = false

	d.logger.TransitionExecuted(ctx, d.name, inst.id, from, target)
	transitionsTotal.WithLabelValues(d.group, d.name, from, target).Inc()

	return nil
}

func (d *Definition) attach() {
	d.liveInstances.Inc()
}

func (d *Definition) detach() {
	d.liveInstances.Dec()
}

package fsm

import "strings"

// editKind discriminates deferred structural edits.
type editKind int

const (
	editAddState editKind = iota
	editAddTransition
	editAddAnyTransition
)

// edit is one queued structural change to a Definition. Edits submitted
// while the Definition has live Instances are queued and replayed by the
// scheduler at the safe point between ticks, so a Step never observes a
// half-updated transition table.
type edit struct {
	kind       editKind
	state      *State
	transition Transition
}

// AddState registers a state. If the Definition has live Instances the edit
// is deferred to the next safe point; with no Instances it applies
// immediately.
func (d *Definition) AddState(state *State) error {
	if state == nil || strings.TrimSpace(state.Name) == "" {
		return ErrNameRequired
	}

	if d.hasState(state.Name) {
		return WrapStateError(state.Name, ErrStateExists)
	}

	if d.liveInstances.Load() > 0 {
		d.enqueue(edit{kind: editAddState, state: state})

		return nil
	}

	d.applyAddState(state)

	return nil
}

// AddTransition registers a transition from one state to another. Both
// endpoints must name a registered (or queued) state. Pass AnyState as from
// to register an any-state transition.
func (d *Definition) AddTransition(from, to string, condition Condition) error {
	if from == AnyState {
		return d.AddAnyStateTransition(to, condition)
	}

	if !d.hasState(from) {
		return WrapTransitionError(from, to, ErrTransitionSourceNotFound)
	}

	if !d.hasState(to) {
		return WrapTransitionError(from, to, ErrTransitionTargetNotFound)
	}

	t := Transition{From: from, To: to, Condition: condition}

	if d.liveInstances.Load() > 0 {
		d.enqueue(edit{kind: editAddTransition, transition: t})

		return nil
	}

	d.applyAddTransition(t)

	return nil
}

// AddAnyStateTransition registers a transition that can fire from any state.
// Any-state transitions are evaluated before regular transitions, in
// insertion order.
func (d *Definition) AddAnyStateTransition(to string, condition Condition) error {
	if !d.hasState(to) {
		return WrapTransitionError(AnyState, to, ErrTransitionTargetNotFound)
	}

	t := Transition{From: AnyState, To: to, Condition: condition}

	if d.liveInstances.Load() > 0 {
		d.enqueue(edit{kind: editAddAnyTransition, transition: t})

		return nil
	}

	d.applyAddAnyTransition(t)

	return nil
}

// PendingEdits returns the number of structural edits waiting for the next
// safe point.
func (d *Definition) PendingEdits() int {
	d.editMu.Lock()
	defer d.editMu.Unlock()

	return len(d.pendingEdits)
}

func (d *Definition) enqueue(e edit) {
	d.editMu.Lock()
	defer d.editMu.Unlock()

	d.pendingEdits = append(d.pendingEdits, e)
	deferredEditsQueued.WithLabelValues(d.group, d.name).Inc()
}

// drainEdits applies all queued edits in submission order. Called by the
// scheduler strictly after an instance pass completes.
func (d *Definition) drainEdits() int {
	d.editMu.Lock()
	queued := d.pendingEdits
	d.pendingEdits = nil
	d.editMu.Unlock()

	for _, e := range queued {
		switch e.kind {
		case editAddState:
			d.applyAddState(e.state)
		case editAddTransition:
			d.applyAddTransition(e.transition)
		case editAddAnyTransition:
			d.applyAddAnyTransition(e.transition)
		}
	}

	return len(queued)
}

func (d *Definition) applyAddState(state *State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.states[state.Name] = state
}

func (d *Definition) applyAddTransition(t Transition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.transitions[t.From] = append(d.transitions[t.From], t)
}

func (d *Definition) applyAddAnyTransition(t Transition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.anyTransitions = append(d.anyTransitions, t)
}

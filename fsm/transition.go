package fsm

import "context"

// Transition is a directed rule (from, to, condition). A Transition whose
// From is AnyState is an any-state transition: it is evaluated before the
// regular transitions of every state and takes priority over them.
//
// Transitions are stored in insertion order per source state (or in the
// any-state list) and the first whose condition returns true wins.
type Transition struct {
	From      string
	To        string
	Condition Condition
}

// IsAnyState reports whether this is an any-state transition.
func (t Transition) IsAnyState() bool {
	return t.From == AnyState
}

// evaluate runs the transition's condition. A nil condition always fires.
func (t Transition) evaluate(ctx context.Context, host HostContext) (bool, error) {
	if t.Condition == nil {
		return true, nil
	}

	return t.Condition(ctx, host)
}

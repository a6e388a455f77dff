package fsm

import "context"

// State is a named unit of behavior within a Definition. All three actions
// are optional; a nil action is skipped.
type State struct {
	Name     string
	OnEnter  Action
	OnUpdate Action
	OnExit   Action
}

// enter runs the state's enter action, if any.
func (s *State) enter(ctx context.Context, host HostContext) error {
	if s.OnEnter == nil {
		return nil
	}

	return s.OnEnter(ctx, host)
}

// update runs the state's update action, if any.
func (s *State) update(ctx context.Context, host HostContext) error {
	if s.OnUpdate == nil {
		return nil
	}

	return s.OnUpdate(ctx, host)
}

// exit runs the state's exit action, if any.
func (s *State) exit(ctx context.Context, host HostContext) error {
	if s.OnExit == nil {
		return nil
	}

	return s.OnExit(ctx, host)
}

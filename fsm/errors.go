package fsm

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrGroupNotFound indicates that a processing group is not registered.
	ErrGroupNotFound = errors.New("processing group not found")
	// ErrDefinitionNotFound indicates that no Definition is registered under
	// the given (name, group) pair.
	ErrDefinitionNotFound = errors.New("definition not found")
	// ErrDefinitionExists indicates that a different Definition with live
	// Instances already occupies the (name, group) slot.
	ErrDefinitionExists = errors.New("definition already registered")
	// ErrStateNotFound indicates that a state name does not exist in the
	// Definition.
	ErrStateNotFound = errors.New("state not found")
	// ErrStateExists indicates that a state with the same name is already
	// registered.
	ErrStateExists = errors.New("state already exists")
	// ErrNilHostContext indicates that CreateInstance was called without a
	// host context.
	ErrNilHostContext = errors.New("host context is required")
	// ErrInstanceDestroyed indicates an operation on an Instance already
	// flagged for removal.
	ErrInstanceDestroyed = errors.New("instance is destroyed")
	// ErrActionPanic indicates that an action or condition panicked during a
	// step; the panic is contained at the step boundary.
	ErrActionPanic = errors.New("action panicked")

	// ErrNameRequired indicates that a name is empty or whitespace-only.
	ErrNameRequired = errors.New("name is required")
	// ErrGroupRequired indicates that a processing-group name is required.
	ErrGroupRequired = errors.New("processing group name is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
	// ErrNoStates indicates that a Definition has no states.
	ErrNoStates = errors.New("at least one state is required")
	// ErrTransitionSourceNotFound indicates that a transition's source state
	// does not exist.
	ErrTransitionSourceNotFound = errors.New("transition source state does not exist")
	// ErrTransitionTargetNotFound indicates that a transition's target state
	// does not exist.
	ErrTransitionTargetNotFound = errors.New("transition target state does not exist")
)

// StateError wraps an error with the state it occurred in.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with the transition being evaluated.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// DefinitionError wraps an error with the Definition it concerns.
type DefinitionError struct {
	Definition string
	Group      string
	Err        error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition %s (group %s): %v", e.Definition, e.Group, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From: from,
		To:   to,
		Err:  err,
	}
}

// WrapDefinitionError wraps an error with definition context.
func WrapDefinitionError(definition, group string, err error) error {
	if err == nil {
		return nil
	}

	return &DefinitionError{
		Definition: definition,
		Group:      group,
		Err:        err,
	}
}

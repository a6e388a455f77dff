package fsm

import "errors"

// Builder provides a fluent API for constructing Definitions. It
// accumulates states and transitions, validates the whole shape in Build,
// and yields a finished Definition ready for registration. Instances never
// observe a partially built Definition.
type Builder struct {
	name         string
	group        string
	processRate  int
	initialState string
	states       []*State
	transitions  []Transition
	errs         []error
}

// NewBuilder creates a builder for a Definition in the given processing
// group. The process rate defaults to RateEveryTick.
func NewBuilder(name, group string) *Builder {
	return &Builder{
		name:        name,
		group:       group,
		processRate: RateEveryTick,
	}
}

// NewBuilderFromConfig seeds a builder with the shape declared in a Config:
// states with no actions and transitions with no conditions (always firing).
// Attach behavior with WithStateActions and WithTransitionCondition.
func NewBuilderFromConfig(config *Config) *Builder {
	b := &Builder{
		name:         config.Name,
		group:        config.Group,
		processRate:  config.ProcessRate,
		initialState: config.InitialState,
	}

	for _, state := range config.States {
		b.states = append(b.states, &State{Name: state.Name})
	}

	for _, t := range config.Transitions {
		b.transitions = append(b.transitions, Transition{From: t.From, To: t.To})
	}

	return b
}

// WithProcessRate sets the Definition's tick cadence.
func (b *Builder) WithProcessRate(rate int) *Builder {
	b.processRate = rate

	return b
}

// WithInitialState sets the state new Instances start in.
func (b *Builder) WithInitialState(name string) *Builder {
	b.initialState = name

	return b
}

// AddState adds a state. The first state added becomes the initial state
// unless one is set explicitly.
func (b *Builder) AddState(state *State) *Builder {
	b.states = append(b.states, state)

	if b.initialState == "" && state != nil {
		b.initialState = state.Name
	}

	return b
}

// AddTransition adds a transition between two states. A nil condition
// always fires.
func (b *Builder) AddTransition(from, to string, condition Condition) *Builder {
	b.transitions = append(b.transitions, Transition{From: from, To: to, Condition: condition})

	return b
}

// AddAnyStateTransition adds a transition that can fire from any state,
// evaluated with priority over regular transitions.
func (b *Builder) AddAnyStateTransition(to string, condition Condition) *Builder {
	b.transitions = append(b.transitions, Transition{From: AnyState, To: to, Condition: condition})

	return b
}

// WithStateActions attaches actions to an already added state, by name.
// Unknown names are reported at Build time.
func (b *Builder) WithStateActions(name string, enter, update, exit Action) *Builder {
	for _, state := range b.states {
		if state.Name == name {
			state.OnEnter = enter
			state.OnUpdate = update
			state.OnExit = exit

			return b
		}
	}

	b.errs = append(b.errs, WrapStateError(name, ErrStateNotFound))

	return b
}

// WithTransitionCondition attaches a condition to the first already added
// transition matching (from, to).
func (b *Builder) WithTransitionCondition(from, to string, condition Condition) *Builder {
	for idx := range b.transitions {
		if b.transitions[idx].From == from && b.transitions[idx].To == to {
			b.transitions[idx].Condition = condition

			return b
		}
	}

	return b
}

// Build validates the accumulated shape and constructs the Definition. All
// configuration problems are collected and returned joined.
func (b *Builder) Build() (*Definition, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	config := &Config{
		Name:         b.name,
		Group:        b.group,
		InitialState: b.initialState,
		ProcessRate:  b.processRate,
	}

	for _, state := range b.states {
		config.States = append(config.States, StateConfig{Name: state.Name})
	}

	for _, t := range b.transitions {
		config.Transitions = append(config.Transitions, TransitionConfig{From: t.From, To: t.To})
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	def, err := NewDefinition(b.name, b.processRate, b.group)
	if err != nil {
		return nil, err
	}

	var errs []error

	for _, state := range b.states {
		errs = append(errs, def.AddState(state))
	}

	for _, t := range b.transitions {
		errs = append(errs, def.AddTransition(t.From, t.To, t.Condition))
	}

	errs = append(errs, def.SetInitialState(b.initialState))

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return def, nil
}

// BuildAndRegister builds the Definition and registers it with the
// Registry in one call.
func (b *Builder) BuildAndRegister(registry *Registry) (*Definition, error) {
	def, err := b.Build()
	if err != nil {
		return nil, err
	}

	if err := registry.Register(def); err != nil {
		return nil, err
	}

	return def, nil
}

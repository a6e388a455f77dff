package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPatrolDefinition(t *testing.T, counter *actionCounter, host *testHost) *Definition {
	t.Helper()

	def, err := NewBuilder("patrol", "enemies").
		AddState(countingState("idle", counter)).
		AddState(countingState("chase", counter)).
		AddState(countingState("dead", counter)).
		AddTransition("idle", "chase", host.flag("sees_player")).
		AddAnyStateTransition("dead", host.flag("killed")).
		Build()
	require.NoError(t, err)

	return def
}

func stepOnce(t *testing.T, inst *Instance) {
	t.Helper()
	require.NoError(t, inst.Step(context.Background()))
}

func TestStepRunsEnterThenUpdateOnFirstTick(t *testing.T) {
	t.Parallel()

	counter := newActionCounter()
	host := newTestHost("grunt")
	def := buildPatrolDefinition(t, counter, host)
	inst := newInstance(def, host)

	stepOnce(t, inst)

	assert.Equal(t, "idle", inst.CurrentState())
	assert.Equal(t, []string{"idle.enter", "idle.update"}, counter.sequence())

	// Second step: already entered, only update runs.
	stepOnce(t, inst)
	assert.Equal(t, 1, counter.count("idle.enter"))
	assert.Equal(t, 2, counter.count("idle.update"))
}

func TestStepDelaysTargetEntryToNextTick(t *testing.T) {
	t.Parallel()

	counter := newActionCounter()
	host := newTestHost("grunt")
	def := buildPatrolDefinition(t, counter, host)
	inst := newInstance(def, host)

	stepOnce(t, inst)
	host.set("sees_player", true)

	// The tick that decides the transition: idle updates once more, exits,
	// and chase's enter must NOT run yet.
	stepOnce(t, inst)

	assert.Equal(t, "chase", inst.CurrentState())
	assert.Equal(t, 2, counter.count("idle.update"))
	assert.Equal(t, 1, counter.count("idle.exit"))
	assert.Equal(t, 0, counter.count("chase.enter"))

	// Next tick enters chase.
	stepOnce(t, inst)
	assert.Equal(t, 1, counter.count("chase.enter"))
	assert.Equal(t, 1, counter.count("chase.update"))
}

func TestStepUpdateRunsExactlyOnceWhenTransitionFires(t *testing.T) {
	t.Parallel()

	counter := newActionCounter()
	host := newTestHost("grunt")
	def := buildPatrolDefinition(t, counter, host)
	inst := newInstance(def, host)

	host.set("sees_player", true)

	stepOnce(t, inst)

	// Enter, one update, then the transition: never zero, never two.
	assert.Equal(t, []string{"idle.enter", "idle.update", "idle.exit"}, counter.sequence())
}

func TestAnyStateTransitionWinsOverRegular(t *testing.T) {
	t.Parallel()

	counter := newActionCounter()
	host := newTestHost("grunt")
	def := buildPatrolDefinition(t, counter, host)
	inst := newInstance(def, host)

	stepOnce(t, inst)

	// Both conditions true simultaneously: the any-state transition to
	// "dead" must win over idle -> chase.
	host.set("sees_player", true)
	host.set("killed", true)

	stepOnce(t, inst)

	assert.Equal(t, "dead", inst.CurrentState())
}

func TestRegularTransitionsFireInInsertionOrder(t *testing.T) {
	t.Parallel()

	host := newTestHost("grunt")

	def, err := NewBuilder("router", "enemies").
		AddState(&State{Name: "start"}).
		AddState(&State{Name: "first"}).
		AddState(&State{Name: "second"}).
		AddTransition("start", "first", host.flag("go")).
		AddTransition("start", "second", host.flag("go")).
		Build()
	require.NoError(t, err)

	inst := newInstance(def, host)
	host.set("go", true)

	stepOnce(t, inst)

	assert.Equal(t, "first", inst.CurrentState())
}

func TestStepFaultPropagatesToBoundary(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken update")
	host := newTestHost("grunt")

	def, err := NewBuilder("broken", "enemies").
		AddState(&State{
			Name: "only",
			OnUpdate: func(context.Context, HostContext) error {
				return errBroken
			},
		}).
		Build()
	require.NoError(t, err)

	inst := newInstance(def, host)

	err = inst.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)

	var stateErr *StateError

	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "only", stateErr.State)
}

func TestConditionFaultPropagatesWithTransitionContext(t *testing.T) {
	t.Parallel()

	errGuard := errors.New("guard exploded")
	host := newTestHost("grunt")

	def, err := NewBuilder("guarded", "enemies").
		AddState(&State{Name: "a"}).
		AddState(&State{Name: "b"}).
		AddTransition("a", "b", func(context.Context, HostContext) (bool, error) {
			return false, errGuard
		}).
		Build()
	require.NoError(t, err)

	inst := newInstance(def, host)

	err = inst.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errGuard)

	var transitionErr *TransitionError

	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "a", transitionErr.From)
	assert.Equal(t, "b", transitionErr.To)
}

func TestNewDefinitionValidation(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("  ", RateEveryTick, "enemies")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = NewDefinition("patrol", RateEveryTick, "")
	assert.ErrorIs(t, err, ErrGroupRequired)
}

func TestNewDefinitionCoercesInvalidRateToEventDriven(t *testing.T) {
	t.Parallel()

	def, err := NewDefinition("patrol", -7, "enemies")
	require.NoError(t, err)
	assert.Equal(t, RateEventDriven, def.ProcessRate())
}

func TestCurrentStateAlwaysNamesARegisteredState(t *testing.T) {
	t.Parallel()

	counter := newActionCounter()
	host := newTestHost("grunt")
	def := buildPatrolDefinition(t, counter, host)
	inst := newInstance(def, host)

	states := map[string]bool{"idle": true, "chase": true, "dead": true}

	assert.True(t, states[inst.CurrentState()])

	host.set("sees_player", true)

	for i := 0; i < 5; i++ {
		stepOnce(t, inst)
		assert.True(t, states[inst.CurrentState()], "observed state %q", inst.CurrentState())
	}
}

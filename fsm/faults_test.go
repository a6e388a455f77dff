package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDefinition faults on every update while the host's "failing" flag is
// set.
func registerFlaky(t *testing.T, registry *Registry, host *testHost) {
	t.Helper()

	errFlaky := errors.New("flaky update")

	def, err := NewBuilder("flaky", "enemies").
		AddState(&State{
			Name: "only",
			OnUpdate: func(ctx context.Context, _ HostContext) error {
				if fired, _ := host.flag("failing")(ctx, host); fired {
					return errFlaky
				}

				return nil
			},
		}).
		Build()
	require.NoError(t, err)
	require.NoError(t, registry.Register(def))
}

func TestFaultPolicyMonotonicAccumulates(t *testing.T) {
	t.Parallel()

	registry, scheduler := newTestScheduler(t)
	scheduler.SetFaultTracker(NewFaultTracker(2, FaultPolicyMonotonic))
	scheduler.SetLogger(NopLogger{})

	ctx := context.Background()
	host := newTestHost("grunt")
	registerFlaky(t, registry, host)

	inst, err := registry.CreateInstance("flaky", host, "enemies")
	require.NoError(t, err)

	// Two faults, then a fault-free tick, then one more fault. Monotonic
	// counters never reset, so the third fault exceeds the threshold.
	host.set("failing", true)
	require.NoError(t, scheduler.Tick(ctx, "enemies"))
	require.NoError(t, scheduler.Tick(ctx, "enemies"))

	host.set("failing", false)
	require.NoError(t, scheduler.Tick(ctx, "enemies"))
	assert.Equal(t, int64(2), scheduler.FaultTracker().InstanceFaults(inst.ID()))

	host.set("failing", true)
	require.NoError(t, scheduler.Tick(ctx, "enemies"))

	assert.Equal(t, 0, registry.InstanceCount("enemies"))
}

func TestFaultPolicyResetOnSuccessForgivesGaps(t *testing.T) {
	t.Parallel()

	registry, scheduler := newTestScheduler(t)
	scheduler.SetFaultTracker(NewFaultTracker(2, FaultPolicyResetOnSuccess))
	scheduler.SetLogger(NopLogger{})

	ctx := context.Background()
	host := newTestHost("grunt")
	registerFlaky(t, registry, host)

	inst, err := registry.CreateInstance("flaky", host, "enemies")
	require.NoError(t, err)

	// Fail twice, recover, fail twice, recover: the counter resets after
	// every fault-free tick and the instance survives indefinitely.
	for i := 0; i < 3; i++ {
		host.set("failing", true)
		require.NoError(t, scheduler.Tick(ctx, "enemies"))
		require.NoError(t, scheduler.Tick(ctx, "enemies"))

		host.set("failing", false)
		require.NoError(t, scheduler.Tick(ctx, "enemies"))
		assert.Equal(t, int64(0), scheduler.FaultTracker().InstanceFaults(inst.ID()))
	}

	assert.Equal(t, 1, registry.InstanceCount("enemies"))

	// Three consecutive faults still evict.
	host.set("failing", true)
	require.NoError(t, scheduler.Tick(ctx, "enemies"))
	require.NoError(t, scheduler.Tick(ctx, "enemies"))
	require.NoError(t, scheduler.Tick(ctx, "enemies"))

	assert.Equal(t, 0, registry.InstanceCount("enemies"))
}

func TestFaultTrackerDefinitionCountersAreMonotonic(t *testing.T) {
	t.Parallel()

	tracker := NewFaultTracker(10, FaultPolicyResetOnSuccess)
	tracker.SetReporter(&testReporter{})

	def, err := NewDefinition("flaky", RateEveryTick, "enemies")
	require.NoError(t, err)
	require.NoError(t, def.AddState(&State{Name: "only"}))
	require.NoError(t, def.SetInitialState("only"))

	inst := newInstance(def, newTestHost("grunt"))
	cause := errors.New("boom")

	assert.False(t, tracker.Record(inst, cause))
	assert.False(t, tracker.Record(inst, cause))

	tracker.RecordSuccess(inst)

	// The instance counter reset; the definition counter did not.
	assert.Equal(t, int64(0), tracker.InstanceFaults(inst.ID()))
	assert.Equal(t, int64(2), tracker.DefinitionFaults("flaky"))
}

func TestFaultTrackerThresholdFallback(t *testing.T) {
	t.Parallel()

	tracker := NewFaultTracker(0, FaultPolicyMonotonic)
	tracker.SetReporter(&testReporter{})

	def, err := NewDefinition("flaky", RateEveryTick, "enemies")
	require.NoError(t, err)
	require.NoError(t, def.AddState(&State{Name: "only"}))
	require.NoError(t, def.SetInitialState("only"))

	inst := newInstance(def, newTestHost("grunt"))
	cause := errors.New("boom")

	for i := 0; i < DefaultFaultThreshold; i++ {
		assert.False(t, tracker.Record(inst, cause))
	}

	assert.True(t, tracker.Record(inst, cause))
}

func TestFaultTrackerForget(t *testing.T) {
	t.Parallel()

	tracker := NewFaultTracker(5, FaultPolicyMonotonic)
	tracker.SetReporter(&testReporter{})

	def, err := NewDefinition("flaky", RateEveryTick, "enemies")
	require.NoError(t, err)
	require.NoError(t, def.AddState(&State{Name: "only"}))
	require.NoError(t, def.SetInitialState("only"))

	inst := newInstance(def, newTestHost("grunt"))

	tracker.Record(inst, errors.New("boom"))
	require.Equal(t, int64(1), tracker.InstanceFaults(inst.ID()))

	tracker.Forget(inst.ID())
	assert.Equal(t, int64(0), tracker.InstanceFaults(inst.ID()))
}

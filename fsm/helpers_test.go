package fsm

import (
	"context"
	"sync"
)

// testHost is a minimal HostContext with settable flags for conditions.
type testHost struct {
	name string

	mu    sync.Mutex
	valid bool
	flags map[string]bool
}

func newTestHost(name string) *testHost {
	return &testHost{
		name:  name,
		valid: true,
		flags: make(map[string]bool),
	}
}

func (h *testHost) Name() string {
	return h.name
}

func (h *testHost) IsValid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.valid
}

func (h *testHost) setValid(valid bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.valid = valid
}

func (h *testHost) set(flag string, value bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.flags[flag] = value
}

// flag returns a Condition that fires while the named flag is set.
func (h *testHost) flag(name string) Condition {
	return func(_ context.Context, _ HostContext) (bool, error) {
		h.mu.Lock()
		defer h.mu.Unlock()

		return h.flags[name], nil
	}
}

// actionCounter counts and orders action invocations across states.
type actionCounter struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string
}

func newActionCounter() *actionCounter {
	return &actionCounter{counts: make(map[string]int)}
}

func (c *actionCounter) action(key string) Action {
	return func(context.Context, HostContext) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.counts[key]++
		c.order = append(c.order, key)

		return nil
	}
}

func (c *actionCounter) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[key]
}

func (c *actionCounter) sequence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.order))
	copy(out, c.order)

	return out
}

// countingState builds a state whose three actions record into the counter
// under "<name>.enter", "<name>.update" and "<name>.exit".
func countingState(name string, counter *actionCounter) *State {
	return &State{
		Name:     name,
		OnEnter:  counter.action(name + ".enter"),
		OnUpdate: counter.action(name + ".update"),
		OnExit:   counter.action(name + ".exit"),
	}
}

// testReporter records reported messages for assertions.
type testReporter struct {
	mu       sync.Mutex
	messages []string
	causes   []error
}

func (r *testReporter) Report(message string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, message)
	r.causes = append(r.causes, cause)
}

func (r *testReporter) reportCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.messages)
}

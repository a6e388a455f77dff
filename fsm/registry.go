package fsm

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Bucket pairs one Definition with the ordered list of its live Instances
// inside a processing group.
type Bucket struct {
	def *Definition

	mu        sync.Mutex
	instances []*Instance
}

// Definition returns the Bucket's Definition.
func (b *Bucket) Definition() *Definition {
	return b.def
}

// Instances returns a snapshot of the Bucket's live Instances in insertion
// order.
func (b *Bucket) Instances() []*Instance {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Instance, len(b.instances))
	copy(out, b.instances)

	return out
}

// Len returns the number of live Instances in the Bucket.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.instances)
}

func (b *Bucket) append(inst *Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.instances = append(b.instances, inst)
	b.def.attach()
}

// removeMarked drops all Instances flagged for removal, preserving the
// order of the remainder. Returns the removed Instances.
func (b *Bucket) removeMarked() []*Instance {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Instance

	kept := b.instances[:0]

	for _, inst := range b.instances {
		if inst.isRemovalPending() {
			removed = append(removed, inst)
			b.def.detach()

			continue
		}

		kept = append(kept, inst)
	}

	// Clear trailing slots so removed Instances are collectable.
	for idx := len(kept); idx < len(b.instances); idx++ {
		b.instances[idx] = nil
	}

	b.instances = kept

	return removed
}

// Registry maps processing-group names to definition names to Buckets. It
// is safe for concurrent use; ticks for different groups may run in
// parallel.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Bucket
}

// NewRegistry creates an empty Registry. Construct one per process (or per
// isolated runtime) and hand it to all callers; there is no ambient global
// instance.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]map[string]*Bucket),
	}
}

// CreateProcessingGroup bootstraps a named group. Idempotent.
func (r *Registry) CreateProcessingGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return ErrGroupRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[group]; !ok {
		r.groups[group] = make(map[string]*Bucket)
	}

	return nil
}

// RegisterDefinition creates or retrieves the Definition slot for
// (name, group) and returns its Definition. The group is created on first
// use. Repeat calls with the same arguments return the existing Definition;
// the processRate argument only applies on first creation.
func (r *Registry) RegisterDefinition(name string, processRate int, group string) (*Definition, error) {
	if err := r.CreateProcessingGroup(group); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if bucket, ok := r.groups[group][name]; ok {
		return bucket.def, nil
	}

	def, err := NewDefinition(name, processRate, group)
	if err != nil {
		return nil, err
	}

	r.groups[group][name] = &Bucket{def: def}

	return def, nil
}

// Register places a finished Definition (typically produced by a Builder)
// into its group's Bucket, creating the group on first use. Re-registering
// the same Definition is a no-op. A different Definition may replace an
// occupied slot only while the slot has no live Instances.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return ErrDefinitionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[def.group]
	if !ok {
		group = make(map[string]*Bucket)
		r.groups[def.group] = group
	}

	if existing, ok := group[def.name]; ok {
		if existing.def == def {
			return nil
		}

		if existing.Len() > 0 {
			return WrapDefinitionError(def.name, def.group, ErrDefinitionExists)
		}
	}

	group[def.name] = &Bucket{def: def}

	return nil
}

// GetOrCreateBucket returns the Bucket for (group, definitionName),
// creating the group and an empty Definition slot on first use. Idempotent
// and side-effect-free on repeat calls with identical arguments.
func (r *Registry) GetOrCreateBucket(group, definitionName string) (*Bucket, error) {
	if _, err := r.RegisterDefinition(definitionName, RateEveryTick, group); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.groups[group][definitionName], nil
}

// Bucket returns the Bucket for (group, definitionName) without creating
// anything.
func (r *Registry) Bucket(group, definitionName string) (*Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buckets, ok := r.groups[group]
	if !ok {
		return nil, WrapDefinitionError(definitionName, group, ErrGroupNotFound)
	}

	bucket, ok := buckets[definitionName]
	if !ok {
		return nil, WrapDefinitionError(definitionName, group, ErrDefinitionNotFound)
	}

	return bucket, nil
}

// CreateInstance binds a host context to a registered Definition and
// appends the new Instance to the Definition's Bucket. It fails with a
// lookup error if the Definition is not registered and with an argument
// error if the context is nil. The creation path never touches the
// Definition's structure.
func (r *Registry) CreateInstance(definitionName string, host HostContext, group string) (*Instance, error) {
	if host == nil {
		return nil, ErrNilHostContext
	}

	bucket, err := r.Bucket(group, definitionName)
	if err != nil {
		return nil, err
	}

	if bucket.def.InitialState() == "" {
		return nil, WrapDefinitionError(definitionName, group, ErrInitialStateRequired)
	}

	inst := newInstance(bucket.def, host)
	bucket.append(inst)

	liveInstancesGauge.WithLabelValues(group, definitionName).Inc()

	return inst, nil
}

// groupBuckets returns a snapshot of the group's Buckets in a stable order.
func (r *Registry) groupBuckets(group string) ([]*Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buckets, ok := r.groups[group]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", group, ErrGroupNotFound)
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}

	slices.Sort(names)

	out := make([]*Bucket, 0, len(names))
	for _, name := range names {
		out = append(out, buckets[name])
	}

	return out, nil
}

// Groups returns the names of all processing groups.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Definitions returns the names of all Definitions registered under the
// group.
func (r *Registry) Definitions(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buckets := r.groups[group]

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// InstanceCount returns the number of live Instances across all Buckets of
// the group.
func (r *Registry) InstanceCount(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, bucket := range r.groups[group] {
		total += bucket.Len()
	}

	return total
}

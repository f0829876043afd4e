package updater

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// entry is the runtime record of a registered task
type entry struct {
	task  Task
	state State

	// gen identifies the current arm; timer goroutines of earlier arms compare
	// it to detect that they are stale
	gen  uint64
	runs uint64

	// kickPending is set from arm until the first tick of that arm
	kickPending bool

	interval time.Duration
	ticker   clockwork.Ticker
	stop     chan struct{}
}

// Registry holds registered tasks in registration order.
// It is not safe for concurrent use; the Scheduler serializes access.
type Registry struct {
	policy  DuplicatePolicy
	order   []string
	entries map[string]*entry
}

// NewRegistry creates an empty Registry
func NewRegistry(policy DuplicatePolicy) *Registry {
	if policy == "" {
		policy = PolicyReject
	}
	return &Registry{
		policy:  policy,
		entries: make(map[string]*entry),
	}
}

// add stores a task. It returns the replaced entry, if any.
func (r *Registry) add(t Task) (*entry, *entry, error) {
	if err := t.validate(); err != nil {
		return nil, nil, err
	}

	old, exists := r.entries[t.Name]
	if exists && r.policy != PolicyReplace {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
	}

	e := &entry{task: t, state: StateIdle}
	r.entries[t.Name] = e
	if !exists {
		r.order = append(r.order, t.Name)
	}
	return e, old, nil
}

func (r *Registry) get(name string) (*entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// each visits entries in registration order
func (r *Registry) each(fn func(*entry)) {
	for _, name := range r.order {
		fn(r.entries[name])
	}
}

func (r *Registry) clear() {
	r.order = nil
	r.entries = make(map[string]*entry)
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns the registered names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

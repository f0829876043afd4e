package gate

import (
	"sort"
	"sync"
)

// Conditions derives a Gate from named boolean conditions: the gate is active
// exactly when every registered condition is true.
type Conditions struct {
	gate *Gate

	// apply orders gate updates; mu guards values only
	apply  sync.Mutex
	mu     sync.Mutex
	values map[string]bool
}

// Well-known condition names
const (
	// Bootstrapped is true once the application finished loading cluster data
	Bootstrapped = "bootstrapped"
	// WriteAccess is false for restricted view-only users
	WriteAccess = "writeAccess"
)

// NewConditions creates Conditions over g. All named conditions start false.
func NewConditions(g *Gate, names ...string) *Conditions {
	values := make(map[string]bool, len(names))
	for _, n := range names {
		values[n] = false
	}
	return &Conditions{gate: g, values: values}
}

// Set updates one condition and re-derives the gate.
// Unknown names are added as new conditions. Observers run after the values
// are unlocked, so Pending stays responsive; they must not call Set.
func (c *Conditions) Set(name string, value bool) {
	c.apply.Lock()
	defer c.apply.Unlock()

	c.mu.Lock()
	c.values[name] = value
	active := len(c.values) > 0
	for _, v := range c.values {
		active = active && v
	}
	c.mu.Unlock()

	c.gate.Set(active)
}

// Pending returns the names of conditions that are currently false, sorted
func (c *Conditions) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []string
	for n, v := range c.values {
		if !v {
			pending = append(pending, n)
		}
	}
	sort.Strings(pending)
	return pending
}

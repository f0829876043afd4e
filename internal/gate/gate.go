// Package gate provides the observable "active" switch that starts and stops
// synchronization.
package gate

import (
	"log/slog"
	"sync"
)

// Observer receives gate transitions
type Observer func(active bool)

// Gate is a boolean value that notifies observers on every transition.
// Observers run synchronously, in subscription order, on the goroutine that
// changed the gate. They must not change the gate themselves.
type Gate struct {
	// transition serializes Set calls so observers see transitions in order
	transition sync.Mutex

	mu        sync.Mutex
	active    bool
	nextID    int
	observers []subscriber
}

type subscriber struct {
	id int
	fn Observer
}

// New creates an inactive Gate
func New() *Gate {
	return &Gate{}
}

// Active returns the current value
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Set changes the value and notifies observers. Setting the current value is
// a no-op. It returns whether a transition happened.
func (g *Gate) Set(active bool) bool {
	g.transition.Lock()
	defer g.transition.Unlock()

	g.mu.Lock()
	if g.active == active {
		g.mu.Unlock()
		return false
	}
	g.active = active
	observers := make([]subscriber, len(g.observers))
	copy(observers, g.observers)
	g.mu.Unlock()

	slog.Debug("Gate transition", "active", active, "observers", len(observers))
	for _, o := range observers {
		o.fn(active)
	}
	return true
}

// Subscribe registers an observer and returns a function that removes it
func (g *Gate) Subscribe(fn Observer) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := g.nextID
	g.observers = append(g.observers, subscriber{id: id, fn: fn})

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, o := range g.observers {
			if o.id == id {
				g.observers = append(g.observers[:i], g.observers[i+1:]...)
				return
			}
		}
	}
}

// Package guard tracks which named tasks have a request in flight.
package guard

import "sync"

// Guard holds one in-flight marker per task name.
// It is safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an empty Guard
func New() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks name as in flight. It returns false, without changing
// anything, when name is already marked.
func (g *Guard) TryAcquire(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[name]; busy {
		return false
	}
	g.inFlight[name] = struct{}{}
	return true
}

// Release clears the marker for name. Releasing an idle name is a no-op.
func (g *Guard) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inFlight, name)
}

// InFlight reports whether name is currently marked
func (g *Guard) InFlight(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, busy := g.inFlight[name]
	return busy
}

// Do runs fn when name can be acquired and returns whether it ran.
// fn receives the release function, which it must call on every path once its
// asynchronous work is finished; repeated calls are ignored.
func (g *Guard) Do(name string, fn func(release func())) bool {
	if !g.TryAcquire(name) {
		return false
	}

	var once sync.Once
	release := func() {
		once.Do(func() { g.Release(name) })
	}

	panicked := true
	defer func() {
		if panicked {
			release()
		}
	}()
	fn(release)
	panicked = false
	return true
}

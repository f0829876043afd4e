// Package navigation classifies dashboard routes into the views the update
// tasks care about.
package navigation

import (
	"regexp"
	"strings"
	"sync"
)

// View is the classification of the current route
type View int

const (
	// ViewOther is any route that is neither the hosts list nor host details
	ViewOther View = iota
	// ViewHostsList is the hosts table
	ViewHostsList
	// ViewHostDetails is the page of a single host
	ViewHostDetails
)

// String returns the view name
func (v View) String() string {
	switch v {
	case ViewHostsList:
		return "hosts"
	case ViewHostDetails:
		return "hostDetails"
	default:
		return "other"
	}
}

// Context is a snapshot of the current navigation state
type Context struct {
	// Route is the raw route path
	Route string
	// View is the classification of Route
	View View
	// FocusedHost is the host name shown by the host details view
	FocusedHost string
}

// Source provides the current navigation context
type Source interface {
	Current() Context
}

const hostsRoute = "/main/hosts"

var hostDetailsPattern = regexp.MustCompile(`/hosts/(.*)/(summary|configs|alerts|stackVersions|logs)`)

// Classify derives a Context from a route path
func Classify(route string) Context {
	path, _, _ := strings.Cut(route, "?")
	ctx := Context{Route: route, View: ViewOther}

	if m := hostDetailsPattern.FindStringSubmatch(path); m != nil && strings.HasPrefix(path, hostsRoute+"/") {
		ctx.View = ViewHostDetails
		ctx.FocusedHost = m[1]
		return ctx
	}
	if strings.TrimSuffix(path, "/") == hostsRoute {
		ctx.View = ViewHostsList
	}
	return ctx
}

// Tracker holds the current route and notifies listeners when it changes.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	current   Context
	listeners []func(Context)
}

// NewTracker creates a Tracker positioned at route
func NewTracker(route string) *Tracker {
	return &Tracker{current: Classify(route)}
}

// Current returns the current navigation context
func (t *Tracker) Current() Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// OnChange registers a listener called after every route change
func (t *Tracker) OnChange(fn func(Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Navigate moves to route and notifies listeners when the route changed
func (t *Tracker) Navigate(route string) Context {
	t.mu.Lock()
	if t.current.Route == route {
		ctx := t.current
		t.mu.Unlock()
		return ctx
	}
	t.current = Classify(route)
	ctx := t.current
	listeners := make([]func(Context), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}
	return ctx
}

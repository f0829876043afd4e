package updater

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateTask is returned when registering a name twice under the reject policy
	ErrDuplicateTask = errors.New("task already registered")
	// ErrUnknownTask is returned for operations on names that were never registered
	ErrUnknownTask = errors.New("task not registered")
	// ErrInvalidTask is returned for tasks missing a name or an action
	ErrInvalidTask = errors.New("invalid task")
)

// Action performs one run of a task. It must call done exactly once when the run
// is over, on every path; further calls are ignored. done may be called from any goroutine.
type Action func(ctx context.Context, done func())

// Task is a named unit of synchronization work
type Task struct {
	// Name identifies the task
	Name string

	// Action is invoked on every eligible tick
	Action Action

	// Gate is evaluated before every run; the run is skipped while it returns false.
	// A nil gate is always open.
	Gate func() bool

	// Interval is the polling period. Zero means the task runs once per arm.
	Interval time.Duration

	// RoutePattern is an optional regular expression over the current route.
	// While it does not match, the task polls at OffRouteInterval.
	RoutePattern string

	// OffRouteInterval is the period used while RoutePattern does not match.
	// Zero means Interval multiplied by the scheduler's off-route factor.
	OffRouteInterval time.Duration
}

func (t Task) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if t.Action == nil {
		return fmt.Errorf("%w: %s has no action", ErrInvalidTask, t.Name)
	}
	if t.Interval < 0 || t.OffRouteInterval < 0 {
		return fmt.Errorf("%w: %s has a negative interval", ErrInvalidTask, t.Name)
	}
	return nil
}

// State is the scheduling state of a task
type State int

const (
	// StateIdle means the task has no timer
	StateIdle State = iota
	// StateArmed means the task timer is running
	StateArmed
	// StateRunning means an action run is in flight
	StateRunning
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateArmed:
		return "ARMED"
	case StateRunning:
		return "RUNNING"
	default:
		return "IDLE"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = StateIdle
	case "ARMED":
		*s = StateArmed
	case "RUNNING":
		*s = StateRunning
	default:
		return fmt.Errorf("unknown task state %q", text)
	}
	return nil
}

// DuplicatePolicy decides what Register does with a name that is already registered
type DuplicatePolicy string

const (
	// PolicyReject returns ErrDuplicateTask
	PolicyReject DuplicatePolicy = "reject"
	// PolicyReplace disarms the existing task and registers the new one in its place
	PolicyReplace DuplicatePolicy = "replace"
)

// ParseDuplicatePolicy parses a policy name. The empty string means PolicyReject.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyReplace:
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (expected %q or %q)", s, PolicyReject, PolicyReplace)
	}
}

// Info is a point-in-time view of one registered task
type Info struct {
	Name              string        `json:"name"`
	State             State         `json:"state"`
	Interval          time.Duration `json:"interval"`
	EffectiveInterval time.Duration `json:"effectiveInterval"`
	RoutePattern      string        `json:"routePattern,omitempty"`
	InFlight          bool          `json:"inFlight"`
}

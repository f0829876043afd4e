// Package subscription opens and closes the fixed set of push channels the
// update engine listens on while the global gate is active.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_push_client.go -package=mocks github.com/tqrg-bot/ambari-sync/internal/subscription PushClient

// Push destinations
const (
	DestHostComponents   = "/events/hostcomponents"
	DestAlerts           = "/events/alerts"
	DestUITopologies     = "/events/ui_topologies"
	DestConfigs          = "/events/configs"
	DestServices         = "/events/services"
	DestHosts            = "/events/hosts"
	DestAlertDefinitions = "/events/alert_definitions"
)

// Destinations lists every push destination in subscription order
var Destinations = []string{
	DestHostComponents,
	DestAlerts,
	DestUITopologies,
	DestConfigs,
	DestServices,
	DestHosts,
	DestAlertDefinitions,
}

// PushClient is the push transport
type PushClient interface {
	// Subscribe starts delivering messages for destination to handler
	Subscribe(ctx context.Context, destination string, handler func(body []byte)) error
	// Unsubscribe stops delivery for destination
	Unsubscribe(ctx context.Context, destination string) error
}

// Channel binds a destination to the handler that applies its messages
type Channel struct {
	Destination string
	Handler     func(body []byte)
}

// Manager opens every channel on Activate and closes the same set on Deactivate.
// Both operations are idempotent.
type Manager struct {
	client   PushClient
	channels []Channel

	mu     sync.Mutex
	active bool
}

// NewManager creates an inactive Manager
func NewManager(client PushClient, channels ...Channel) (*Manager, error) {
	seen := make(map[string]struct{}, len(channels))
	for i, ch := range channels {
		if ch.Destination == "" {
			return nil, fmt.Errorf("channel[%d]: destination is required", i)
		}
		if ch.Handler == nil {
			return nil, fmt.Errorf("channel[%d] (%s): handler is required", i, ch.Destination)
		}
		if _, dup := seen[ch.Destination]; dup {
			return nil, fmt.Errorf("channel[%d]: duplicate destination %s", i, ch.Destination)
		}
		seen[ch.Destination] = struct{}{}
	}

	return &Manager{client: client, channels: channels}, nil
}

// Activate subscribes every channel. A failed subscription does not stop the
// others; all failures are returned joined.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return nil
	}
	m.active = true

	var errs []error
	for _, ch := range m.channels {
		if err := m.client.Subscribe(ctx, ch.Destination, ch.Handler); err != nil {
			errs = append(errs, fmt.Errorf("failed to subscribe to %s: %w", ch.Destination, err))
		}
	}
	slog.Info("Push channels opened", "count", len(m.channels), "failed", len(errs))
	return errors.Join(errs...)
}

// Deactivate unsubscribes every channel opened by Activate
func (m *Manager) Deactivate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return nil
	}
	m.active = false

	var errs []error
	for _, ch := range m.channels {
		if err := m.client.Unsubscribe(ctx, ch.Destination); err != nil {
			errs = append(errs, fmt.Errorf("failed to unsubscribe from %s: %w", ch.Destination, err))
		}
	}
	slog.Info("Push channels closed", "count", len(m.channels), "failed", len(errs))
	return errors.Join(errs...)
}

// Active reports whether the channels are open
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Channels returns the managed destinations in subscription order
func (m *Manager) Channels() []string {
	dests := make([]string, len(m.channels))
	for i, ch := range m.channels {
		dests[i] = ch.Destination
	}
	return dests
}

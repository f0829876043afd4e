// Package store keeps the latest payload of every synchronized dataset.
//
// Payloads are kept as raw JSON and read with gjson paths, so the store does
// not need a model of the server's resources.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
)

// Dataset names
const (
	Hosts              = "hosts"
	HostsMetrics       = "hostsMetrics"
	HostLogging        = "hostLogging"
	Services           = "services"
	ServiceMetrics     = "serviceMetrics"
	ComponentsState    = "componentsState"
	ComponentConfigs   = "componentConfigs"
	AlertDefinitions   = "alertDefinitions"
	AlertSummary       = "alertDefinitionSummary"
	AlertGroups        = "alertGroups"
	AlertInstances     = "unhealthyAlertInstances"
	AlertNotifications = "alertNotifications"
	ClusterEnv         = "clusterEnv"
	UpgradeState       = "upgradeState"
	WizardData         = "wizardData"
)

// ErrInvalidJSON is returned when a payload is not valid JSON
var ErrInvalidJSON = errors.New("payload is not valid JSON")

// Dataset is one stored payload
type Dataset struct {
	Name      string
	Raw       []byte
	Version   uint64
	UpdatedAt time.Time
}

// Get reads a gjson path from the payload
func (d Dataset) Get(path string) gjson.Result {
	return gjson.GetBytes(d.Raw, path)
}

// Items returns the number of entries in the payload's items array
func (d Dataset) Items() int {
	return int(gjson.GetBytes(d.Raw, "items.#").Int())
}

// Info summarizes a dataset without its payload
type Info struct {
	Name      string    `json:"name"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	Size      int       `json:"size"`
	Items     int       `json:"items"`
}

// Store is an in-memory dataset store. It is safe for concurrent use.
type Store struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for update timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		clock:    clockwork.NewRealClock(),
		datasets: make(map[string]*Dataset),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply replaces the payload of name
func (s *Store) Apply(name string, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: dataset %s", ErrInvalidJSON, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var version uint64 = 1
	if prev, ok := s.datasets[name]; ok {
		version = prev.Version + 1
	}
	s.datasets[name] = &Dataset{
		Name:      name,
		Raw:       slices.Clone(raw),
		Version:   version,
		UpdatedAt: s.clock.Now(),
	}
	return nil
}

// Get returns a copy of the dataset
func (s *Store) Get(name string) (Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[name]
	if !ok {
		return Dataset{}, false
	}
	out := *d
	out.Raw = slices.Clone(d.Raw)
	return out, true
}

// Query reads a gjson path from the dataset; the result does not exist when the dataset is missing
func (s *Store) Query(name, path string) gjson.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[name]
	if !ok {
		return gjson.Result{}
	}
	return gjson.GetBytes(d.Raw, path)
}

// Loaded reports whether name has a payload
func (s *Store) Loaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.datasets[name]
	return ok
}

// Delete removes a dataset and reports whether it existed
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.datasets[name]
	delete(s.datasets, name)
	return ok
}

// Infos returns a summary of every dataset sorted by name
func (s *Store) Infos() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.datasets))
	for _, d := range s.datasets {
		infos = append(infos, Info{
			Name:      d.Name,
			Version:   d.Version,
			UpdatedAt: d.UpdatedAt,
			Size:      len(d.Raw),
			Items:     d.Items(),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return infos
}

// Package config provides configuration loading and management for the sync engine.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables read by the CLI
	EnvPrefix = "AMBARI_SYNC"

	// DefaultAPIPrefix is the path prefix of the cluster REST API
	DefaultAPIPrefix = "/api/v1"

	// DefaultRequestTimeout bounds a single REST request
	DefaultRequestTimeout = 30 * time.Second

	// DefaultControlAddress is the listen address of the control server
	DefaultControlAddress = ":8080"

	// DefaultPushPath is the STOMP websocket endpoint below the server base URL
	DefaultPushPath = "/api/stomp/v1/websocket"

	// DefaultOffRouteFactor multiplies route-sensitive intervals while the route does not match
	DefaultOffRouteFactor = 4

	// DefaultAlertsPageSize is the page size of the unhealthy alert instances request
	DefaultAlertsPageSize = 10

	// PasswordEnvVar is consulted when no password file is configured
	PasswordEnvVar = "AMBARI_SYNC_PASSWORD"
)

// Default polling intervals, matching the dashboard defaults
const (
	DefaultContentInterval        = 15 * time.Second
	DefaultComponentsInterval     = 6 * time.Second
	DefaultAlertGroupsInterval    = 60 * time.Second
	DefaultAlertInstancesInterval = 60 * time.Second
	DefaultBgOperationsInterval   = 6 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Push       *PushConfig       `yaml:"push,omitempty"`
	Intervals  *IntervalsConfig  `yaml:"intervals,omitempty"`
	Scheduler  *SchedulerConfig  `yaml:"scheduler,omitempty"`
	Hosts      *HostsConfig      `yaml:"hosts,omitempty"`
	Control    *ControlConfig    `yaml:"control,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
	StatusFile string            `yaml:"statusFile,omitempty"`
}

// ServerConfig defines the cluster management server to synchronize with
type ServerConfig struct {
	// BaseURL is the scheme and host of the server, e.g. "https://ambari:8443"
	BaseURL string `yaml:"baseURL"`

	// APIPrefix defaults to "/api/v1"
	APIPrefix string `yaml:"apiPrefix,omitempty"`

	// Cluster is the name of the managed cluster
	Cluster string `yaml:"cluster"`

	// RequestTimeout is a duration string, e.g. "30s"
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	// User for basic authentication. Empty disables authentication.
	User string `yaml:"user,omitempty"`

	// PasswordFile is the path to a file containing the password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// StackVersion is the current stack version number, e.g. "2.6".
	// It selects version-specific service metric fields.
	StackVersion string `yaml:"stackVersion,omitempty"`
}

// PushConfig defines the STOMP push channel connection
type PushConfig struct {
	// Disabled turns off push subscriptions; only polling runs
	Disabled bool `yaml:"disabled,omitempty"`

	// URL of the websocket endpoint. Derived from the server base URL when empty.
	URL string `yaml:"url,omitempty"`

	// Heartbeat is the outgoing heartbeat period, e.g. "10s". Empty disables heartbeats.
	Heartbeat string `yaml:"heartbeat,omitempty"`

	// ReconnectInitial is the first reconnect delay
	ReconnectInitial string `yaml:"reconnectInitial,omitempty"`

	// ReconnectMax caps the reconnect delay
	ReconnectMax string `yaml:"reconnectMax,omitempty"`
}

// IntervalsConfig defines the polling periods of the update tasks
type IntervalsConfig struct {
	Content        string `yaml:"content,omitempty"`
	Components     string `yaml:"components,omitempty"`
	AlertGroups    string `yaml:"alertGroups,omitempty"`
	AlertInstances string `yaml:"alertInstances,omitempty"`
	BgOperations   string `yaml:"bgOperations,omitempty"`

	// OffRouteFactor multiplies route-sensitive intervals while off their page
	OffRouteFactor int `yaml:"offRouteFactor,omitempty"`
}

// SchedulerConfig defines task registry behavior
type SchedulerConfig struct {
	// DuplicatePolicy is "reject" (default) or "replace"
	DuplicatePolicy string `yaml:"duplicatePolicy,omitempty"`

	// RouteCacheSize bounds the compiled route pattern cache
	RouteCacheSize int `yaml:"routeCacheSize,omitempty"`
}

// HostsConfig defines the host table refresh
type HostsConfig struct {
	// LazyLoadMetrics loads host metrics in a separate request
	LazyLoadMetrics bool `yaml:"lazyLoadMetrics,omitempty"`

	// LogSearch adds the host component logging resource to host requests
	LogSearch bool `yaml:"logSearch,omitempty"`

	// PageSize of the hosts table; zero requests all hosts
	PageSize int `yaml:"pageSize,omitempty"`

	// AlertsPageSize of the unhealthy alert instances request
	AlertsPageSize int `yaml:"alertsPageSize,omitempty"`
}

// ControlConfig defines the local control server
type ControlConfig struct {
	// Address to listen on, defaults to ":8080"
	Address string `yaml:"address,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetPassword returns the server password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from AMBARI_SYNC_PASSWORD environment variable
//
// An empty password is returned when neither is set.
func (s *ServerConfig) GetPassword() (string, error) {
	if s.PasswordFile != "" {
		cleanPath := filepath.Clean(s.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", s.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return os.Getenv(PasswordEnvVar), nil
}

// GetAPIPrefix returns the API prefix, using the default if not specified
func (s *ServerConfig) GetAPIPrefix() string {
	if s.APIPrefix == "" {
		return DefaultAPIPrefix
	}
	return s.APIPrefix
}

// GetRequestTimeout returns the request timeout, using the default if not specified
func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return durationOr(s.RequestTimeout, DefaultRequestTimeout)
}

// PushEnabled reports whether push subscriptions should be opened
func (c *Config) PushEnabled() bool {
	return c.Push == nil || !c.Push.Disabled
}

// GetPushURL returns the websocket URL of the push channel. When no URL is
// configured, it is derived from the server base URL with the scheme
// switched to ws/wss.
func (c *Config) GetPushURL() string {
	if c.Push != nil && c.Push.URL != "" {
		return c.Push.URL
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + DefaultPushPath
	return u.String()
}

// GetHeartbeat returns the push heartbeat period; zero disables heartbeats
func (p *PushConfig) GetHeartbeat() time.Duration {
	if p == nil {
		return 0
	}
	return durationOr(p.Heartbeat, 0)
}

// GetReconnect returns the initial and maximum reconnect delays
func (p *PushConfig) GetReconnect() (initial, maxDelay time.Duration) {
	if p == nil {
		return time.Second, 30 * time.Second
	}
	return durationOr(p.ReconnectInitial, time.Second), durationOr(p.ReconnectMax, 30*time.Second)
}

// GetContent returns the content interval used by the hosts table
func (i *IntervalsConfig) GetContent() time.Duration {
	if i == nil {
		return DefaultContentInterval
	}
	return durationOr(i.Content, DefaultContentInterval)
}

// GetComponents returns the components interval
func (i *IntervalsConfig) GetComponents() time.Duration {
	if i == nil {
		return DefaultComponentsInterval
	}
	return durationOr(i.Components, DefaultComponentsInterval)
}

// GetAlertGroups returns the alert groups interval
func (i *IntervalsConfig) GetAlertGroups() time.Duration {
	if i == nil {
		return DefaultAlertGroupsInterval
	}
	return durationOr(i.AlertGroups, DefaultAlertGroupsInterval)
}

// GetAlertInstances returns the unhealthy alert instances interval
func (i *IntervalsConfig) GetAlertInstances() time.Duration {
	if i == nil {
		return DefaultAlertInstancesInterval
	}
	return durationOr(i.AlertInstances, DefaultAlertInstancesInterval)
}

// GetBgOperations returns the background operations interval
func (i *IntervalsConfig) GetBgOperations() time.Duration {
	if i == nil {
		return DefaultBgOperationsInterval
	}
	return durationOr(i.BgOperations, DefaultBgOperationsInterval)
}

// GetOffRouteFactor returns the off-route interval factor
func (i *IntervalsConfig) GetOffRouteFactor() int {
	if i == nil || i.OffRouteFactor == 0 {
		return DefaultOffRouteFactor
	}
	return i.OffRouteFactor
}

// GetDuplicatePolicy returns the duplicate task policy, "reject" if not specified
func (s *SchedulerConfig) GetDuplicatePolicy() string {
	if s == nil || s.DuplicatePolicy == "" {
		return "reject"
	}
	return s.DuplicatePolicy
}

// GetRouteCacheSize returns the route pattern cache size; zero means the scheduler default
func (s *SchedulerConfig) GetRouteCacheSize() int {
	if s == nil {
		return 0
	}
	return s.RouteCacheSize
}

// GetAlertsPageSize returns the unhealthy alerts page size
func (h *HostsConfig) GetAlertsPageSize() int {
	if h == nil || h.AlertsPageSize == 0 {
		return DefaultAlertsPageSize
	}
	return h.AlertsPageSize
}

// GetAddress returns the control server address, using the default if not specified
func (c *ControlConfig) GetAddress() string {
	if c == nil || c.Address == "" {
		return DefaultControlAddress
	}
	return c.Address
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if err := c.Server.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Push.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Intervals.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scheduler.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Hosts != nil && (c.Hosts.PageSize < 0 || c.Hosts.AlertsPageSize < 0) {
		errs = append(errs, fmt.Errorf("hosts: page sizes must not be negative"))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("server.baseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.baseURL: scheme must be http or https, got %q", u.Scheme)
	}
	if s.Cluster == "" {
		return fmt.Errorf("server.cluster is required")
	}
	if s.APIPrefix != "" && !strings.HasPrefix(s.APIPrefix, "/") {
		return fmt.Errorf("server.apiPrefix must start with '/'")
	}
	return validateDuration("server.requestTimeout", s.RequestTimeout)
}

func (p *PushConfig) validate() error {
	if p == nil {
		return nil
	}
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("push.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("push.url: scheme must be ws or wss, got %q", u.Scheme)
		}
	}
	return errors.Join(
		validateDuration("push.heartbeat", p.Heartbeat),
		validateDuration("push.reconnectInitial", p.ReconnectInitial),
		validateDuration("push.reconnectMax", p.ReconnectMax),
	)
}

func (i *IntervalsConfig) validate() error {
	if i == nil {
		return nil
	}
	errs := []error{
		validateDuration("intervals.content", i.Content),
		validateDuration("intervals.components", i.Components),
		validateDuration("intervals.alertGroups", i.AlertGroups),
		validateDuration("intervals.alertInstances", i.AlertInstances),
		validateDuration("intervals.bgOperations", i.BgOperations),
	}
	if i.OffRouteFactor < 0 {
		errs = append(errs, fmt.Errorf("intervals.offRouteFactor must be at least 1, got %d", i.OffRouteFactor))
	}
	return errors.Join(errs...)
}

func (s *SchedulerConfig) validate() error {
	if s == nil {
		return nil
	}
	switch s.DuplicatePolicy {
	case "", "reject", "replace":
	default:
		return fmt.Errorf("scheduler.duplicatePolicy must be 'reject' or 'replace', got %q", s.DuplicatePolicy)
	}
	if s.RouteCacheSize < 0 {
		return fmt.Errorf("scheduler.routeCacheSize must not be negative")
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return fmt.Errorf("%s: must not be negative", field)
	}
	return nil
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		yamlContent string
		wantConfig  *Config
		wantErr     string
	}{
		{
			name: "minimal_config",
			yamlContent: `server:
  baseURL: http://ambari:8080
  cluster: c1`,
			wantConfig: &Config{
				Server: ServerConfig{BaseURL: "http://ambari:8080", Cluster: "c1"},
			},
		},
		{
			name: "full_config",
			yamlContent: `server:
  baseURL: https://ambari:8443
  apiPrefix: /api/v1
  cluster: prod
  requestTimeout: 10s
  user: admin
push:
  heartbeat: 10s
  reconnectInitial: 500ms
  reconnectMax: 20s
intervals:
  content: 30s
  components: 10s
  offRouteFactor: 2
scheduler:
  duplicatePolicy: replace
hosts:
  lazyLoadMetrics: true
  logSearch: true
  pageSize: 25
control:
  address: 127.0.0.1:9090
telemetry:
  enabled: true
  metrics:
    enabled: true
statusFile: /var/lib/ambari-sync/status.json`,
			wantConfig: &Config{
				Server: ServerConfig{
					BaseURL:        "https://ambari:8443",
					APIPrefix:      "/api/v1",
					Cluster:        "prod",
					RequestTimeout: "10s",
					User:           "admin",
				},
				Push: &PushConfig{
					Heartbeat:        "10s",
					ReconnectInitial: "500ms",
					ReconnectMax:     "20s",
				},
				Intervals: &IntervalsConfig{
					Content:        "30s",
					Components:     "10s",
					OffRouteFactor: 2,
				},
				Scheduler: &SchedulerConfig{DuplicatePolicy: "replace"},
				Hosts: &HostsConfig{
					LazyLoadMetrics: true,
					LogSearch:       true,
					PageSize:        25,
				},
				Control: &ControlConfig{Address: "127.0.0.1:9090"},
				Telemetry: &telemetry.Config{
					Enabled: true,
					Metrics: &telemetry.MetricsConfig{Enabled: true},
				},
				StatusFile: "/var/lib/ambari-sync/status.json",
			},
		},
		{
			name:        "missing_base_url",
			yamlContent: "server:\n  cluster: c1",
			wantErr:     "server.baseURL is required",
		},
		{
			name:        "missing_cluster",
			yamlContent: "server:\n  baseURL: http://ambari:8080",
			wantErr:     "server.cluster is required",
		},
		{
			name:        "invalid_yaml",
			yamlContent: "server: [",
			wantErr:     "failed to parse YAML config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadConfig(WithConfigPath(writeConfig(t, tt.yamlContent)))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, cfg)
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	base := ServerConfig{BaseURL: "http://ambari:8080", Cluster: "c1"}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "valid",
			config: &Config{Server: base},
		},
		{
			name:    "nil_config",
			config:  nil,
			wantErr: "config cannot be nil",
		},
		{
			name:    "bad_scheme",
			config:  &Config{Server: ServerConfig{BaseURL: "ftp://ambari", Cluster: "c1"}},
			wantErr: "scheme must be http or https",
		},
		{
			name:    "relative_api_prefix",
			config:  &Config{Server: ServerConfig{BaseURL: "http://a", Cluster: "c1", APIPrefix: "api/v1"}},
			wantErr: "server.apiPrefix must start with '/'",
		},
		{
			name:    "bad_timeout",
			config:  &Config{Server: ServerConfig{BaseURL: "http://a", Cluster: "c1", RequestTimeout: "soon"}},
			wantErr: "server.requestTimeout: invalid duration",
		},
		{
			name:    "bad_push_scheme",
			config:  &Config{Server: base, Push: &PushConfig{URL: "http://a/ws"}},
			wantErr: "push.url: scheme must be ws or wss",
		},
		{
			name:    "negative_interval",
			config:  &Config{Server: base, Intervals: &IntervalsConfig{Content: "-1s"}},
			wantErr: "intervals.content: must not be negative",
		},
		{
			name:    "negative_factor",
			config:  &Config{Server: base, Intervals: &IntervalsConfig{OffRouteFactor: -2}},
			wantErr: "intervals.offRouteFactor must be at least 1",
		},
		{
			name:    "unknown_policy",
			config:  &Config{Server: base, Scheduler: &SchedulerConfig{DuplicatePolicy: "merge"}},
			wantErr: "scheduler.duplicatePolicy",
		},
		{
			name:    "negative_page_size",
			config:  &Config{Server: base, Hosts: &HostsConfig{PageSize: -1}},
			wantErr: "page sizes must not be negative",
		},
		{
			name: "bad_sampling",
			config: &Config{Server: base, Telemetry: &telemetry.Config{
				Enabled: true,
				Tracing: &telemetry.TracingConfig{Enabled: true, Sampling: 2},
			}},
			wantErr: "telemetry: tracing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Server: ServerConfig{BaseURL: "https://ambari:8443/", Cluster: "c1"}}

	assert.Equal(t, DefaultAPIPrefix, cfg.Server.GetAPIPrefix())
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.GetRequestTimeout())
	assert.True(t, cfg.PushEnabled())
	assert.Equal(t, "wss://ambari:8443/api/stomp/v1/websocket", cfg.GetPushURL())
	assert.Zero(t, cfg.Push.GetHeartbeat())

	initial, maxDelay := cfg.Push.GetReconnect()
	assert.Equal(t, time.Second, initial)
	assert.Equal(t, 30*time.Second, maxDelay)

	assert.Equal(t, DefaultContentInterval, cfg.Intervals.GetContent())
	assert.Equal(t, DefaultComponentsInterval, cfg.Intervals.GetComponents())
	assert.Equal(t, DefaultAlertGroupsInterval, cfg.Intervals.GetAlertGroups())
	assert.Equal(t, DefaultAlertInstancesInterval, cfg.Intervals.GetAlertInstances())
	assert.Equal(t, DefaultBgOperationsInterval, cfg.Intervals.GetBgOperations())
	assert.Equal(t, DefaultOffRouteFactor, cfg.Intervals.GetOffRouteFactor())
	assert.Equal(t, "reject", cfg.Scheduler.GetDuplicatePolicy())
	assert.Zero(t, cfg.Scheduler.GetRouteCacheSize())
	assert.Equal(t, DefaultAlertsPageSize, cfg.Hosts.GetAlertsPageSize())
	assert.Equal(t, DefaultControlAddress, cfg.Control.GetAddress())
}

func TestGetPushURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "http_base",
			cfg:  Config{Server: ServerConfig{BaseURL: "http://ambari:8080"}},
			want: "ws://ambari:8080/api/stomp/v1/websocket",
		},
		{
			name: "explicit_url",
			cfg: Config{
				Server: ServerConfig{BaseURL: "http://ambari:8080"},
				Push:   &PushConfig{URL: "wss://push.example:9443/stomp"},
			},
			want: "wss://push.example:9443/stomp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.GetPushURL())
		})
	}
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	existing := writeConfig(t, "server: {}")

	tests := []struct {
		name     string
		path     string
		wantPath string
		wantErr  bool
	}{
		{name: "empty path", path: "", wantErr: true},
		{name: "path traversal at start", path: "../etc/passwd", wantErr: true},
		{name: "path traversal in middle", path: "config/../../etc/passwd", wantErr: true},
		{name: "missing file", path: filepath.Join(t.TempDir(), "absent.yaml"), wantErr: true},
		{name: "valid absolute path", path: existing, wantPath: existing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &loaderConfig{}
			err := WithConfigPath(tt.path)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want, err := filepath.EvalSymlinks(tt.wantPath)
			require.NoError(t, err)
			assert.Equal(t, want, cfg.path)
		})
	}
}

func TestServerConfigGetPassword(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("s3cret\n"), 0600))

	tests := []struct {
		name         string
		server       ServerConfig
		wantPassword string
		wantErr      bool
	}{
		{
			name:         "from_file_trimmed",
			server:       ServerConfig{PasswordFile: passwordFile},
			wantPassword: "s3cret",
		},
		{
			name:    "missing_file",
			server:  ServerConfig{PasswordFile: filepath.Join(dir, "absent")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			password, err := tt.server.GetPassword()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassword, password)
		})
	}
}

//nolint:paralleltest // modifies the process environment
func TestServerConfigGetPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnvVar, "from-env")

	password, err := (&ServerConfig{}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", password)
}

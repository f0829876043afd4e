package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tqrg-bot/ambari-sync/internal/api"
	v1 "github.com/tqrg-bot/ambari-sync/internal/api/v1"
	"github.com/tqrg-bot/ambari-sync/internal/config"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/navigation"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/internal/stomp"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	"github.com/tqrg-bot/ambari-sync/internal/subscription"
	"github.com/tqrg-bot/ambari-sync/internal/sync/coordinator"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

const (
	defaultRoute           = "/main/dashboard"
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	coordinatorTracerName = "github.com/tqrg-bot/ambari-sync/coordinator"
	transportTracerName   = "github.com/tqrg-bot/ambari-sync/httpclient"
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the options of NewSyncApp. Injected components
// replace the ones built from the configuration.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	client    httpclient.Client
	push      subscription.PushClient
	telemetry *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	statusFile string
	route      string
	viewOnly   bool
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		route:          defaultRoute,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Control.GetAddress()
	}
	if cfg.statusFile == "" {
		cfg.statusFile = cfg.config.StatusFile
	}

	return cfg, nil
}

// NewSyncApp builds the sync engine and its control server
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	ownsTelemetry := cfg.telemetry == nil
	if ownsTelemetry {
		cfg.telemetry, err = telemetry.New(ctx, cfg.config.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded && ownsTelemetry {
			_ = cfg.telemetry.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	if cfg.client == nil {
		cfg.client, err = buildHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build REST client: %w", err)
		}
	}

	var pushClient *stomp.Client
	if cfg.push == nil && cfg.config.PushEnabled() {
		pushClient, err = buildPushClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build push client: %w", err)
		}
		cfg.push = pushClient
	}

	components, err := buildSyncComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	app := &SyncApp{
		config:          cfg.config,
		components:      components,
		httpServer:      httpServer,
		client:          cfg.client,
		push:            pushClient,
		urls:            query.NewURLBuilder(cfg.config.Server.GetAPIPrefix(), cfg.config.Server.Cluster, nil),
		viewOnly:        cfg.viewOnly,
		shutdownTimeout: defaultShutdownTimeout,
		ctx:             appCtx,
		cancelFunc:      cancel,
		listening:       make(chan struct{}),
		done:            make(chan struct{}),
	}
	if ownsTelemetry {
		app.telemetry = cfg.telemetry
	}
	return app, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the control server address, overriding the configuration
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStatusFile persists task statuses to path. Empty keeps them in memory.
func WithStatusFile(path string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.statusFile = path
		return nil
	}
}

// WithRoute sets the route the engine starts on
func WithRoute(route string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("route must start with /: %q", route)
		}
		cfg.route = route
		return nil
	}
}

// WithViewOnly runs the engine for a user without write access, which keeps
// the gate closed
func WithViewOnly(viewOnly bool) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.viewOnly = viewOnly
		return nil
	}
}

// WithHTTPClient injects the REST client (for testing)
func WithHTTPClient(c httpclient.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.client = c
		return nil
	}
}

// WithPushClient injects the push transport (for testing). The app does not
// run or close an injected client.
func WithPushClient(p subscription.PushClient) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.push = p
		return nil
	}
}

// WithTelemetry injects telemetry providers. The app does not shut them down.
func WithTelemetry(t *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildHTTPClient creates the REST client of the cluster server
func buildHTTPClient(b *syncAppConfig) (httpclient.Client, error) {
	server := b.config.Server
	metrics, err := telemetry.NewTransportMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create transport metrics: %w", err)
	}

	opts := []httpclient.Option{
		httpclient.WithTimeout(server.GetRequestTimeout()),
		httpclient.WithMetrics(metrics),
		httpclient.WithTracer(b.telemetry.Tracer(transportTracerName)),
	}
	if server.User != "" {
		password, err := server.GetPassword()
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpclient.WithBasicAuth(server.User, password))
	}

	slog.Info("REST client configured", "baseURL", server.BaseURL, "cluster", server.Cluster)
	return httpclient.NewDefaultClient(server.BaseURL, opts...), nil
}

// buildPushClient creates the STOMP client of the push channels
func buildPushClient(b *syncAppConfig) (*stomp.Client, error) {
	metrics, err := telemetry.NewPushMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create push metrics: %w", err)
	}

	initial, maxDelay := b.config.Push.GetReconnect()
	opts := []stomp.Option{
		stomp.WithHeartbeat(b.config.Push.GetHeartbeat()),
		stomp.WithBackoff(initial, maxDelay),
		stomp.WithMetrics(metrics),
	}
	if user := b.config.Server.User; user != "" {
		password, err := b.config.Server.GetPassword()
		if err != nil {
			return nil, err
		}
		creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		opts = append(opts, stomp.WithHeader("Authorization", "Basic "+creds))
	}

	url := b.config.GetPushURL()
	if url == "" {
		return nil, fmt.Errorf("cannot derive push URL from %q", b.config.Server.BaseURL)
	}
	slog.Info("Push client configured", "url", url)
	return stomp.NewClient(url, opts...), nil
}

// buildSyncComponents builds the state service, gate and coordinator
func buildSyncComponents(b *syncAppConfig) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	var persistence status.StatusPersistence
	if b.statusFile != "" {
		persistence = status.NewFileStatusPersistence(b.statusFile)
	}

	g := gate.New()
	components := &AppComponents{
		StateService: state.NewMemoryStateService(persistence),
		Store:        store.New(),
		Gate:         g,
		Conditions:   gate.NewConditions(g, gate.Bootstrapped, gate.WriteAccess),
		Navigation:   navigation.NewTracker(b.route),
	}

	schedulerMetrics, err := telemetry.NewSchedulerMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler metrics: %w", err)
	}

	components.Coordinator, err = coordinator.New(b.client, b.push, components.StateService, b.config,
		coordinator.WithGate(components.Gate),
		coordinator.WithNavigation(components.Navigation),
		coordinator.WithStore(components.Store),
		coordinator.WithSchedulerMetrics(schedulerMetrics),
		coordinator.WithTracer(b.telemetry.Tracer(coordinatorTracerName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	slog.Info("Sync components initialized successfully",
		"route", b.route, "statusFile", b.statusFile, "viewOnly", b.viewOnly)
	return components, nil
}

// buildHTTPServer builds the control server with router and middleware
func buildHTTPServer(b *syncAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing control server")

	if b.middlewares == nil {
		controlMetrics, err := telemetry.NewControlMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create control metrics: %w", err)
		}
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
			controlMetrics.Middleware,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	router := api.NewServer(components.Coordinator, components.StateService,
		api.WithMiddlewares(b.middlewares...),
		api.WithReadiness(components.Conditions),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
		api.WithRouteOptions(
			v1.WithStore(components.Store),
			v1.WithConditions(components.Gate, components.Conditions),
		),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("Control server configured", "address", b.address)
	return server, nil
}

// Package api provides the control server of the sync engine.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tqrg-bot/ambari-sync/internal/api/common"
	v1 "github.com/tqrg-bot/ambari-sync/internal/api/v1"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/sync/coordinator"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
	"github.com/tqrg-bot/ambari-sync/internal/versions"
)

// ServerOption configures the control server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	routeOptions   []v1.Option
	conditions     *gate.Conditions
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRouteOptions passes options to the control routes
func WithRouteOptions(opts ...v1.Option) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOptions = append(cfg.routeOptions, opts...)
	}
}

// WithReadiness reports ready only once every condition holds
func WithReadiness(conds *gate.Conditions) ServerOption {
	return func(cfg *serverConfig) {
		cfg.conditions = conds
	}
}

// WithMetricsHandler serves h at /metrics. A nil handler is ignored.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates the control router over the coordinator and its task state
func NewServer(coord coordinator.Coordinator, states state.TaskStateService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(cfg.conditions))
	r.Get("/version", versionHandler)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Mount("/api/v1", v1.Router(coord, states, cfg.routeOptions...))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(conds *gate.Conditions) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var pending []string
		if conds != nil {
			pending = conds.Pending()
		}
		if len(pending) > 0 {
			common.WriteJSONResponse(w, ReadinessResponse{Status: "waiting", Pending: pending}, http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}

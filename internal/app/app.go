// Package app provides application lifecycle management for the sync engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tqrg-bot/ambari-sync/internal/config"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/stomp"
	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

// bootstrapMaxInterval caps the delay between cluster probes
const bootstrapMaxInterval = 30 * time.Second

// SyncApp encapsulates all components needed to run the sync engine
// It provides lifecycle management and graceful shutdown capabilities
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
	client     httpclient.Client
	push       *stomp.Client
	telemetry  *telemetry.Telemetry
	urls       *query.URLBuilder
	viewOnly   bool

	shutdownTimeout time.Duration

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	listening  chan struct{}
	done       chan struct{}

	mu      sync.Mutex
	addr    net.Addr
	started bool
}

// Start runs the coordinator, the push client and the control server, then
// bootstraps the gate. It blocks until Stop is called or a component fails.
func (app *SyncApp) Start() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return fmt.Errorf("app already started")
	}
	app.started = true
	app.mu.Unlock()
	defer close(app.done)

	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.mu.Lock()
	app.addr = ln.Addr()
	app.mu.Unlock()
	close(app.listening)

	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		if err := app.components.Coordinator.Start(ctx); err != nil {
			return fmt.Errorf("coordinator failed: %w", err)
		}
		return nil
	})

	if app.push != nil {
		g.Go(func() error {
			if err := app.push.Run(ctx); err != nil {
				return fmt.Errorf("push client failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("Control server listening", "address", ln.Addr().String())
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.bootstrap(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown stops the control server and the push client
func (app *SyncApp) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()

	if app.push != nil {
		if err := app.push.Close(shutdownCtx); err != nil {
			slog.Warn("Failed to close push client", "error", err)
		}
	}
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// bootstrap applies the write access condition, then probes the cluster
// until it answers and marks the engine bootstrapped
func (app *SyncApp) bootstrap(ctx context.Context) {
	conds := app.components.Conditions
	conds.Set(gate.WriteAccess, !app.viewOnly)

	url := app.urls.Cluster("?fields=Clusters/version")
	probe := func() (struct{}, error) {
		err := app.client.Get(ctx, url, nil, httpclient.Options{})
		switch httpclient.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = bootstrapMaxInterval
	_, err := backoff.Retry(ctx, probe,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Cluster not reachable, retrying", "error", err, "retryIn", next)
		}),
	)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Failed to bootstrap, updates stay disabled",
				"cluster", app.config.Server.Cluster, "error", err)
		}
		return
	}

	slog.Info("Cluster reachable, engine bootstrapped", "cluster", app.config.Server.Cluster)
	conds.Set(gate.Bootstrapped, true)
}

// Stop gracefully stops the application with the given timeout
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down...")

	app.mu.Lock()
	started := app.started
	app.mu.Unlock()

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	var errs []error
	if started {
		select {
		case <-app.done:
		case <-time.After(timeout):
			errs = append(errs, fmt.Errorf("shutdown did not complete within %s", timeout))
		}
	}

	if app.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		app.telemetry = nil
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Shutdown complete")
	return nil
}

// Listening is closed once the control server accepts connections
func (app *SyncApp) Listening() <-chan struct{} {
	return app.listening
}

// Addr returns the address the control server listens on, or nil before Start
func (app *SyncApp) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.addr
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// Components returns the application components
func (app *SyncApp) Components() *AppComponents {
	return app.components
}

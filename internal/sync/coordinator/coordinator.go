package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/tqrg-bot/ambari-sync/internal/config"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/lazyload"
	"github.com/tqrg-bot/ambari-sync/internal/navigation"
	"github.com/tqrg-bot/ambari-sync/internal/otel"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	"github.com/tqrg-bot/ambari-sync/internal/subscription"
	pkgsync "github.com/tqrg-bot/ambari-sync/internal/sync"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
	"github.com/tqrg-bot/ambari-sync/internal/updater"
)

// shutdownTimeout bounds the wait for timer goroutines on Stop
const shutdownTimeout = 10 * time.Second

var (
	// ErrAlreadyInProgress is returned by Refresh while a run of the task is in flight
	ErrAlreadyInProgress = errors.New("task already in progress")
	// ErrNotRunning is returned by Refresh before Start or after Stop
	ErrNotRunning = errors.New("coordinator is not running")
)

// Coordinator runs the update tasks and push channels while the gate is active
//
//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks github.com/tqrg-bot/ambari-sync/internal/sync/coordinator Coordinator
type Coordinator interface {
	// Start initializes task status and follows the gate.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop disarms all tasks, closes the push channels and waits for running tasks
	Stop() error

	// Navigate records a route change and re-times route-sensitive tasks
	Navigate(route string)

	// SetHostQuery replaces the filters and sort order of the hosts table
	SetHostQuery(q HostQuery)

	// HostQuery returns the current hosts table query
	HostQuery() HostQuery

	// SetFlag sets one of the named UI flags that gate individual tasks
	SetFlag(name string, value bool) error

	// Refresh runs a task once, outside its timer
	Refresh(name string) error

	// UpdateLogging fetches the logging resources of one host's components
	UpdateLogging(ctx context.Context, host string, fields []string) error

	// RegisterGraph adds a graph to the periodic graph refresh
	RegisterGraph(g GraphLoader)

	// Tasks returns the scheduling state of every task in registration order
	Tasks() []updater.Info
}

// HostQuery is the state of the hosts table
type HostQuery struct {
	Filters []query.Filter
	Sort    []query.Sort
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	client    httpclient.Client
	push      subscription.PushClient
	statusSvc state.TaskStateService
	config    *config.Config

	clock     clockwork.Clock
	gate      *gate.Gate
	nav       *navigation.Tracker
	store     *store.Store
	urls      *query.URLBuilder
	loader    *lazyload.Loader
	scheduler *updater.Scheduler
	subs      *subscription.Manager
	tracer    trace.Tracer

	schedulerMetrics *telemetry.SchedulerMetrics
	defs             map[string]taskDef
	order            []string

	mu         sync.Mutex
	hostQuery  HostQuery
	flags      map[string]bool
	graphs     []GraphLoader
	runCtx     context.Context
	cancelFunc context.CancelFunc
	done       chan struct{}
	actions    sync.WaitGroup
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithClock sets the clock used by the scheduler and for status timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(c *defaultCoordinator) {
		c.clock = clock
	}
}

// WithGate sets the global gate. Defaults to a new inactive gate.
func WithGate(g *gate.Gate) Option {
	return func(c *defaultCoordinator) {
		c.gate = g
	}
}

// WithNavigation sets the navigation tracker. Defaults to a tracker at "/".
func WithNavigation(t *navigation.Tracker) Option {
	return func(c *defaultCoordinator) {
		c.nav = t
	}
}

// WithStore sets the dataset store. Defaults to a new empty store.
func WithStore(s *store.Store) Option {
	return func(c *defaultCoordinator) {
		c.store = s
	}
}

// WithSchedulerMetrics sets the scheduler metrics
func WithSchedulerMetrics(metrics *telemetry.SchedulerMetrics) Option {
	return func(c *defaultCoordinator) {
		c.schedulerMetrics = metrics
	}
}

// WithTracer sets the tracer for task runs
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		c.tracer = tracer
	}
}

// New creates a new coordinator with injected dependencies and registers its tasks.
// A nil push client disables the push channels.
func New(
	client httpclient.Client,
	push subscription.PushClient,
	statusSvc state.TaskStateService,
	cfg *config.Config,
	opts ...Option,
) (Coordinator, error) {
	c := &defaultCoordinator{
		client:    client,
		push:      push,
		statusSvc: statusSvc,
		config:    cfg,
		clock:     clockwork.NewRealClock(),
		flags:     make(map[string]bool),
		defs:      make(map[string]taskDef),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = gate.New()
	}
	if c.nav == nil {
		c.nav = navigation.NewTracker("/")
	}
	if c.store == nil {
		c.store = store.New(store.WithClock(c.clock))
	}

	c.urls = query.NewURLBuilder(cfg.Server.GetAPIPrefix(), cfg.Server.Cluster, nil)
	c.loader = lazyload.New(client, c.urls, c.store, c.metricsServiceStarted)
	c.hostQuery = HostQuery{Filters: c.defaultHostFilters()}

	policy, err := updater.ParseDuplicatePolicy(cfg.Scheduler.GetDuplicatePolicy())
	if err != nil {
		return nil, err
	}
	c.scheduler, err = updater.New(
		updater.WithClock(c.clock),
		updater.WithDuplicatePolicy(policy),
		updater.WithOffRouteFactor(cfg.Intervals.GetOffRouteFactor()),
		updater.WithRouteCacheSize(cfg.Scheduler.GetRouteCacheSize()),
		updater.WithMetrics(c.schedulerMetrics),
		updater.WithTracer(c.tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	c.scheduler.Navigate(c.nav.Current().Route)

	for _, def := range c.taskDefs() {
		if err := c.scheduler.Register(updater.Task{
			Name:         def.name,
			Action:       c.action(def),
			Gate:         c.taskGate(def),
			Interval:     def.interval,
			RoutePattern: def.routePattern,
		}); err != nil {
			return nil, fmt.Errorf("failed to register task %s: %w", def.name, err)
		}
		c.defs[def.name] = def
		c.order = append(c.order, def.name)
	}

	if push != nil && cfg.PushEnabled() {
		c.subs, err = subscription.NewManager(push, c.channels()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscription manager: %w", err)
		}
	}

	return c, nil
}

// Start begins following the gate
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting update coordinator", "tasks", len(c.order), "push", c.subs != nil)

	if err := c.statusSvc.Initialize(ctx, c.order); err != nil {
		return fmt.Errorf("failed to initialize task sync status: %w", err)
	}

	coordCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	if c.cancelFunc != nil {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("coordinator already started")
	}
	c.runCtx = coordCtx
	c.cancelFunc = cancel
	c.done = done
	c.mu.Unlock()

	defer func() {
		close(done)
		slog.Info("Update coordinator shutting down")
	}()

	unsubscribe := c.gate.Subscribe(func(active bool) {
		c.onGate(coordCtx, active)
	})
	if c.gate.Active() {
		c.onGate(coordCtx, true)
	}

	<-coordCtx.Done()
	unsubscribe()

	c.mu.Lock()
	c.runCtx = nil
	c.mu.Unlock()

	// the run context is gone; closing subscriptions still needs a live one
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	c.deactivate(shutdownCtx)
	if err := c.scheduler.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Scheduler did not shut down cleanly", "error", err)
	}
	c.actions.Wait()
	return nil
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping update coordinator")
		cancel()
		<-done
	}
	return nil
}

func (c *defaultCoordinator) onGate(ctx context.Context, active bool) {
	if active {
		c.activate(ctx)
		return
	}
	c.deactivate(ctx)
}

// activate opens the push channels, then arms the tasks
func (c *defaultCoordinator) activate(ctx context.Context) {
	slog.Info("Activating updates", "route", c.nav.Current().Route)
	if c.subs != nil {
		if err := c.subs.Activate(ctx); err != nil {
			slog.Error("Failed to open push channels", "error", err)
		}
	}
	c.scheduler.Start(ctx)
}

// deactivate disarms the tasks, then closes the push channels
func (c *defaultCoordinator) deactivate(ctx context.Context) {
	c.scheduler.Stop()
	if c.subs != nil {
		if err := c.subs.Deactivate(ctx); err != nil {
			slog.Error("Failed to close push channels", "error", err)
		}
	}
}

// Navigate records a route change
func (c *defaultCoordinator) Navigate(route string) {
	nav := c.nav.Navigate(route)
	c.scheduler.Navigate(route)
	slog.Debug("Navigated", "route", route, "view", nav.View.String())
}

// SetHostQuery replaces the hosts table query
func (c *defaultCoordinator) SetHostQuery(q HostQuery) {
	if len(query.Pagination(q.Filters)) == 0 {
		q.Filters = append(slices.Clone(q.Filters), c.defaultHostFilters()...)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostQuery = q
}

// HostQuery returns the hosts table query
func (c *defaultCoordinator) HostQuery() HostQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return HostQuery{
		Filters: slices.Clone(c.hostQuery.Filters),
		Sort:    slices.Clone(c.hostQuery.Sort),
	}
}

// SetFlag sets a named UI flag
func (c *defaultCoordinator) SetFlag(name string, value bool) error {
	if !slices.Contains(Flags, name) {
		return fmt.Errorf("unknown flag %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[name] = value
	return nil
}

func (c *defaultCoordinator) flag(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags[name]
}

// Refresh runs a task once through the task guard
func (c *defaultCoordinator) Refresh(name string) error {
	def, ok := c.defs[name]
	if !ok {
		return fmt.Errorf("%w: %s", updater.ErrUnknownTask, name)
	}

	guard := c.scheduler.Guard()
	if !guard.TryAcquire(name) {
		return fmt.Errorf("%w: %s", ErrAlreadyInProgress, name)
	}

	c.mu.Lock()
	ctx := c.runCtx
	if ctx == nil {
		c.mu.Unlock()
		guard.Release(name)
		return ErrNotRunning
	}
	c.actions.Add(1)
	c.mu.Unlock()

	slog.Debug("Refreshing task", "task", name)
	release := sync.OnceFunc(func() { guard.Release(name) })
	go func() {
		defer c.actions.Done()
		defer release()
		after := c.execute(ctx, def)
		release()
		if after != nil {
			after(ctx)
		}
	}()
	return nil
}

// Tasks returns the scheduling state of every task
func (c *defaultCoordinator) Tasks() []updater.Info {
	return c.scheduler.Snapshot()
}

// taskGate combines the global gate with the task's own condition
func (c *defaultCoordinator) taskGate(def taskDef) func() bool {
	return func() bool {
		if !c.gate.Active() {
			return false
		}
		return def.gate == nil || def.gate()
	}
}

// action dispatches a run on its own goroutine so the timer never waits on the network
func (c *defaultCoordinator) action(def taskDef) updater.Action {
	return func(ctx context.Context, done func()) {
		c.mu.Lock()
		if c.runCtx == nil {
			c.mu.Unlock()
			done()
			return
		}
		c.actions.Add(1)
		c.mu.Unlock()

		go func() {
			defer c.actions.Done()
			defer done()
			after := c.execute(ctx, def)
			done()
			if after != nil {
				after(ctx)
			}
		}()
	}
}

// execute runs a task and records its outcome in the state service.
// It returns the run's follow-up, if any, for the caller to invoke after releasing the guard.
func (c *defaultCoordinator) execute(ctx context.Context, def taskDef) func(context.Context) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator."+def.name,
		trace.WithAttributes(
			otel.AttrTaskName.String(def.name),
			otel.AttrView.String(c.nav.Current().View.String()),
		),
	)
	defer span.End()

	c.updateStatus(ctx, def.name, func(s *status.TaskStatus) {
		s.Start(c.clock.Now())
	})

	res, err := def.run(ctx)
	now := c.clock.Now()

	switch {
	case err != nil:
		reason := pkgsync.ReasonOf(err)
		otel.RecordError(span, err)
		slog.Warn("Task failed", "task", def.name, "reason", reason, "error", err)
		c.updateStatus(ctx, def.name, func(s *status.TaskStatus) {
			s.Fail(reason, err.Error())
		})
	case res.skipped != "":
		slog.Debug("Task skipped", "task", def.name, "reason", res.skipped)
		c.updateStatus(ctx, def.name, func(s *status.TaskStatus) {
			s.Skip(res.skipped)
		})
	default:
		span.SetAttributes(otel.AttrResultCount.Int(res.items))
		c.updateStatus(ctx, def.name, func(s *status.TaskStatus) {
			s.Complete(now, res.items)
		})
	}
	return res.after
}

func (c *defaultCoordinator) updateStatus(ctx context.Context, name string, fn func(*status.TaskStatus)) {
	_, err := c.statusSvc.UpdateStatusAtomically(ctx, name, func(s *status.TaskStatus) bool {
		fn(s)
		return true
	})
	if err != nil {
		slog.Error("Error updating task status", "task", name, "error", err)
	}
}

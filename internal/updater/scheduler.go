package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/tqrg-bot/ambari-sync/internal/guard"
	"github.com/tqrg-bot/ambari-sync/internal/otel"
	pkgsync "github.com/tqrg-bot/ambari-sync/internal/sync"
	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

// DefaultOffRouteFactor multiplies a task interval while its route pattern does not match
const DefaultOffRouteFactor = 4

// Scheduler arms, ticks and disarms registered tasks
type Scheduler struct {
	mu sync.Mutex

	clock          clockwork.Clock
	guard          *guard.Guard
	registry       *Registry
	matcher        *routeMatcher
	offRouteFactor int
	policy         DuplicatePolicy
	routeCacheSize int

	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	route   string
	nextGen uint64

	metrics *telemetry.SchedulerMetrics
	tracer  trace.Tracer

	wg sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the clock used for task timers
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithGuard sets the in-flight guard shared with other callers
func WithGuard(g *guard.Guard) Option {
	return func(s *Scheduler) {
		s.guard = g
	}
}

// WithDuplicatePolicy sets how Register treats an already registered name
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(s *Scheduler) {
		s.policy = policy
	}
}

// WithOffRouteFactor sets the interval multiplier used off-route
func WithOffRouteFactor(factor int) Option {
	return func(s *Scheduler) {
		s.offRouteFactor = factor
	}
}

// WithMetrics sets the scheduler metrics; nil disables them
func WithMetrics(m *telemetry.SchedulerMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for task runs; nil disables tracing
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = tracer
	}
}

// WithRouteCacheSize sets how many compiled route patterns are cached
func WithRouteCacheSize(size int) Option {
	return func(s *Scheduler) {
		s.routeCacheSize = size
	}
}

// New creates a stopped Scheduler with no tasks
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		clock:          clockwork.NewRealClock(),
		offRouteFactor: DefaultOffRouteFactor,
		policy:         PolicyReject,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.offRouteFactor < 1 {
		return nil, fmt.Errorf("off-route factor must be at least 1, got %d", s.offRouteFactor)
	}
	if _, err := ParseDuplicatePolicy(string(s.policy)); err != nil {
		return nil, err
	}
	if s.guard == nil {
		s.guard = guard.New()
	}

	matcher, err := newRouteMatcher(s.routeCacheSize)
	if err != nil {
		return nil, err
	}
	s.matcher = matcher
	s.registry = NewRegistry(s.policy)

	return s, nil
}

// Guard returns the in-flight guard used by the scheduler
func (s *Scheduler) Guard() *guard.Guard {
	return s.guard
}

// Register adds a task. A task registered while the scheduler is started is armed immediately.
func (s *Scheduler) Register(t Task) error {
	if t.RoutePattern != "" {
		if _, err := s.matcher.compile(t.RoutePattern); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidTask, t.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, old, err := s.registry.add(t)
	if err != nil {
		return err
	}
	if old != nil {
		s.stopLoopLocked(old)
		old.state = StateIdle
		slog.Debug("Replaced registered task", "task", t.Name)
	}
	if s.started {
		s.armLocked(e)
		s.recordArmedLocked()
	}
	return nil
}

// UnregisterAll disarms and removes every task
func (s *Scheduler) UnregisterAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.each(func(e *entry) {
		s.stopLoopLocked(e)
		e.state = StateIdle
	})
	s.registry.clear()
	s.recordArmedLocked()
}

// Start arms every registered task. Starting a started scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.runCtx, s.cancel = context.WithCancel(ctx)

	s.registry.each(s.armLocked)
	s.recordArmedLocked()
	slog.Info("Scheduler started", "tasks", s.registry.Len(), "route", s.route)
}

// Stop disarms every task and cancels the context of in-flight runs.
// Runs already dispatched still release their in-flight marker when they complete.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.cancel()

	s.registry.each(func(e *entry) {
		s.stopLoopLocked(e)
		e.state = StateIdle
	})
	s.recordArmedLocked()
	slog.Info("Scheduler stopped")
}

// Shutdown stops the scheduler and waits for timer goroutines to exit
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown interrupted: %w", ctx.Err())
	}
}

// Started reports whether tasks are armed
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Navigate records the current route and resets the timer of every armed task
// whose effective interval changes. No task runs because of the navigation itself.
func (s *Scheduler) Navigate(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if route == s.route {
		return
	}
	s.route = route

	s.registry.each(func(e *entry) {
		if e.task.RoutePattern == "" || e.stop == nil {
			return
		}
		if s.effectiveLocked(e.task) != e.interval {
			s.stopLoopLocked(e)
			s.startLoopLocked(e, e.kickPending)
		}
	})
}

// Route returns the last route passed to Navigate
func (s *Scheduler) Route() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// UpdateInterval changes the polling period of a task. An armed task gets a new
// timer with the new period; it does not run early.
func (s *Scheduler) UpdateInterval(name string, interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("%w: %s: negative interval %s", ErrInvalidTask, name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.registry.get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	e.task.Interval = interval

	if e.stop != nil && s.effectiveLocked(e.task) != e.interval {
		s.stopLoopLocked(e)
		s.startLoopLocked(e, e.kickPending)
	}
	slog.Debug("Task interval updated", "task", name, "interval", interval)
	return nil
}

// State returns the scheduling state of a task
func (s *Scheduler) State(name string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.registry.get(name)
	if !ok {
		return StateIdle, false
	}
	return e.state, true
}

// EffectiveInterval returns the period a task currently polls at
func (s *Scheduler) EffectiveInterval(name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.registry.get(name)
	if !ok {
		return 0, false
	}
	return s.effectiveLocked(e.task), true
}

// ArmedCount returns the number of tasks that are not idle
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armedLocked()
}

// Snapshot returns every registered task in registration order
func (s *Scheduler) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, s.registry.Len())
	s.registry.each(func(e *entry) {
		infos = append(infos, Info{
			Name:              e.task.Name,
			State:             e.state,
			Interval:          e.task.Interval,
			EffectiveInterval: s.effectiveLocked(e.task),
			RoutePattern:      e.task.RoutePattern,
			InFlight:          s.guard.InFlight(e.task.Name),
		})
	})
	return infos
}

func (s *Scheduler) effectiveLocked(t Task) time.Duration {
	if t.RoutePattern == "" || t.Interval == 0 {
		return t.Interval
	}
	matched, err := s.matcher.match(t.RoutePattern, s.route)
	if err != nil || matched {
		return t.Interval
	}
	if t.OffRouteInterval > 0 {
		return t.OffRouteInterval
	}
	return t.Interval * time.Duration(s.offRouteFactor)
}

func (s *Scheduler) armLocked(e *entry) {
	e.state = StateArmed
	e.kickPending = true
	s.startLoopLocked(e, true)
}

// startLoopLocked starts a timer goroutine for e under a fresh generation.
// kick runs the task once before the first timer tick; a re-timed task keeps
// an activation run that has not happened yet.
func (s *Scheduler) startLoopLocked(e *entry, kick bool) {
	s.nextGen++
	e.gen = s.nextGen
	e.interval = s.effectiveLocked(e.task)
	e.stop = make(chan struct{})
	e.ticker = nil
	if e.interval > 0 {
		e.ticker = s.clock.NewTicker(e.interval)
	}

	s.wg.Add(1)
	go s.loop(e.task.Name, e.gen, e.ticker, e.stop, kick)
}

func (s *Scheduler) stopLoopLocked(e *entry) {
	if e.stop == nil {
		return
	}
	close(e.stop)
	e.stop = nil
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	s.nextGen++
	e.gen = s.nextGen
}

func (s *Scheduler) loop(name string, gen uint64, ticker clockwork.Ticker, stop <-chan struct{}, kick bool) {
	defer s.wg.Done()

	if kick {
		s.tick(name, gen)
	}
	if ticker == nil {
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.tick(name, gen)
		}
	}
}

// currentLocked returns the entry for name when gen is still its live generation
func (s *Scheduler) currentLocked(name string, gen uint64) (*entry, bool) {
	e, ok := s.registry.get(name)
	if !ok || e.gen != gen || e.stop == nil || !s.started {
		return nil, false
	}
	return e, true
}

func (s *Scheduler) tick(name string, gen uint64) {
	s.mu.Lock()
	e, ok := s.currentLocked(name, gen)
	if !ok {
		s.mu.Unlock()
		return
	}
	e.kickPending = false
	task := e.task
	ctx := s.runCtx
	s.mu.Unlock()

	if task.Gate != nil && !task.Gate() {
		slog.Debug("Task skipped", "task", name, "reason", pkgsync.ReasonGateClosed)
		s.metrics.RecordSkippedTick(ctx, name, pkgsync.ReasonGateClosed)
		return
	}
	if !s.guard.TryAcquire(name) {
		slog.Debug("Task skipped", "task", name, "reason", pkgsync.ReasonAlreadyInProgress)
		s.metrics.RecordSkippedTick(ctx, name, pkgsync.ReasonAlreadyInProgress)
		return
	}

	s.mu.Lock()
	e, ok = s.currentLocked(name, gen)
	if !ok {
		s.mu.Unlock()
		s.guard.Release(name)
		return
	}
	e.runs++
	run := e.runs
	e.state = StateRunning
	s.mu.Unlock()

	s.run(ctx, e, run, task)
}

func (s *Scheduler) run(ctx context.Context, e *entry, run uint64, task Task) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "updater.tick",
		trace.WithAttributes(
			otel.AttrTaskName.String(task.Name),
			otel.AttrTaskInterval.String(task.Interval.String()),
		),
	)
	began := s.clock.Now()

	var once sync.Once
	done := func() {
		once.Do(func() {
			s.guard.Release(task.Name)

			s.mu.Lock()
			if cur, ok := s.registry.get(task.Name); ok && cur == e && e.runs == run && e.state == StateRunning {
				e.state = StateArmed
			}
			s.mu.Unlock()

			s.metrics.RecordTaskDuration(ctx, task.Name, s.clock.Since(began))
			span.End()
		})
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task %s panicked: %v", task.Name, r)
			slog.Error("Task action panicked", "task", task.Name, "error", err)
			otel.RecordError(span, err)
			done()
		}
	}()

	task.Action(ctx, done)
}

func (s *Scheduler) armedLocked() int {
	count := 0
	s.registry.each(func(e *entry) {
		if e.state != StateIdle {
			count++
		}
	})
	return count
}

func (s *Scheduler) recordArmedLocked() {
	s.metrics.RecordArmedTasks(context.Background(), int64(s.armedLocked()))
}

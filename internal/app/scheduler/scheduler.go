// Package scheduler runs the engine's periodic tasks (accrual, periodic save)
// and its shutdown hooks (final save).
//
// Each task gets its own ticker loop; tasks only coordinate through whatever
// state their callbacks share. Shutdown hooks run once, after every loop has
// exited, with a fresh bounded context so they still work when the run
// context is already cancelled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc runs on every tick with the tick's wall time.
type TaskFunc func(ctx context.Context, now time.Time)

// HookFunc runs once at shutdown.
type HookFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
}

type hook struct {
	name string
	fn   HookFunc
}

// Scheduler owns a set of periodic tasks and shutdown hooks.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []task
	hooks   []hook
	running bool
	stop    chan struct{}

	log             *slog.Logger
	shutdownTimeout time.Duration
}

// New creates an empty scheduler. shutdownTimeout bounds all hooks together.
func New(log *slog.Logger, shutdownTimeout time.Duration) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &Scheduler{
		log:             log.With("component", "scheduler"),
		shutdownTimeout: shutdownTimeout,
		stop:            make(chan struct{}),
	}
}

// Every registers fn to run every interval. Must be called before Run.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be > 0, got %s", name, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("task %s: scheduler already running", name)
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// OnShutdown registers a hook run after all tasks stop. Hooks run in
// registration order.
func (s *Scheduler) OnShutdown(name string, fn HookFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// Run starts every task and blocks until ctx is cancelled or Stop is called,
// then runs the shutdown hooks. The joined hook errors are returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			s.loop(runCtx, t)
		}(t)
	}
	s.log.Info("scheduler started", "tasks", len(tasks))

	select {
	case <-ctx.Done():
	case <-s.stop:
	}
	cancel()
	wg.Wait()

	return s.shutdown()
}

// Stop ends a running Run. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("task stopped", "task", t.name)
			return
		case now := <-ticker.C:
			s.run(ctx, t, now)
		}
	}
}

// run invokes a task, keeping a panic in one task from killing the loop.
func (s *Scheduler) run(ctx context.Context, t task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(ctx, now)
}

func (s *Scheduler) shutdown() error {
	s.mu.Lock()
	hooks := append([]hook(nil), s.hooks...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		s.log.Debug("shutdown hook done", "hook", h.name)
	}
	s.log.Info("scheduler stopped")
	return errors.Join(errs...)
}

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/steward-ai/steward/internal/bus"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

// TaskStore is the slice of the storage layer the scheduler needs.
type TaskStore interface {
	DueTasks(ctx context.Context, now time.Time) ([]models.Task, error)
	UpdateTaskRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error
	DisableTask(ctx context.Context, id string) error
}

// Scheduler polls for due tasks and publishes their reminders as output
// events under a fixed session.
type Scheduler struct {
	store     TaskStore
	bus       bus.Bus
	sessionID string
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithInterval overrides the poll interval (default 30s).
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger configures the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics configures scheduler metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a scheduler publishing reminders under sessionID.
func New(store TaskStore, b bus.Bus, sessionID string, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		bus:       b,
		sessionID: sessionID,
		interval:  30 * time.Second,
		logger:    slog.Default().With("component", "scheduler"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the tick loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop waits for the tick loop to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs one scheduling pass: publish every due task and advance its
// schedule. Exported so tests and manual triggers can drive it directly.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	s.metrics.RecordSchedulerTick()

	due, err := s.store.DueTasks(ctx, now)
	if err != nil {
		s.logger.Warn("due task query failed", "error", err)
		return
	}
	for _, task := range due {
		s.fire(ctx, task, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, task models.Task, now time.Time) {
	out := bus.OutputText{
		SessionID: s.sessionID,
		MessageID: models.NewMessageID(),
		TS:        now.Unix(),
		Text:      "Task due: " + task.DueText(),
	}
	if err := s.bus.Publish(ctx, bus.TopicOutputText, out); err != nil {
		s.logger.Warn("task reminder publish failed", "task_id", task.ID, "error", err)
	}
	s.metrics.RecordSchedulerFired()
	s.logger.Info("task fired", "task_id", task.ID, "title", task.Title)

	next, err := NextRun(task.Schedule, now)
	if err != nil {
		s.logger.Warn("task schedule no longer parses, disabling",
			"task_id", task.ID, "schedule", task.Schedule, "error", err)
		next = nil
	}
	if next == nil {
		if err := s.store.DisableTask(ctx, task.ID); err != nil {
			s.logger.Warn("task disable failed", "task_id", task.ID, "error", err)
		}
	}
	if err := s.store.UpdateTaskRun(ctx, task.ID, now, next); err != nil {
		s.logger.Warn("task run update failed", "task_id", task.ID, "error", err)
	}
}

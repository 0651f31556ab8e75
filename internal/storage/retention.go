package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// RetentionSweeper prunes old tool call audit rows on a cron schedule.
type RetentionSweeper struct {
	store        *Store
	schedule     cron.Schedule
	maxAge       time.Duration
	logger       *slog.Logger
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	started bool
	next    time.Time
	wg      sync.WaitGroup
}

// SweeperOption configures a RetentionSweeper.
type SweeperOption func(*RetentionSweeper)

// WithSweeperLogger configures the sweeper logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *RetentionSweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweeperNow overrides the clock for tests.
func WithSweeperNow(now func() time.Time) SweeperOption {
	return func(s *RetentionSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweeperTickInterval overrides the check interval.
func WithSweeperTickInterval(interval time.Duration) SweeperOption {
	return func(s *RetentionSweeper) {
		if interval > 0 {
			s.tickInterval = interval
		}
	}
}

// NewRetentionSweeper builds a sweeper that deletes tool call entries older
// than maxAge whenever the cron expression fires.
func NewRetentionSweeper(store *Store, cronExpr string, maxAge time.Duration, opts ...SweeperOption) (*RetentionSweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention age must be positive")
	}
	schedule, err := cronParser.Parse(strings.TrimSpace(cronExpr))
	if err != nil {
		return nil, fmt.Errorf("invalid retention cron expression: %w", err)
	}
	s := &RetentionSweeper{
		store:        store,
		schedule:     schedule,
		maxAge:       maxAge,
		logger:       slog.Default().With("component", "retention"),
		now:          time.Now,
		tickInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins the sweep loop until the context is cancelled.
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.next = s.schedule.Next(s.now())
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.maybeSweep(ctx)
			}
		}
	}()
}

// Stop waits for the sweep loop to exit.
func (s *RetentionSweeper) Stop(ctx context.Context) error {
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

// RunOnce sweeps immediately regardless of the schedule.
func (s *RetentionSweeper) RunOnce(ctx context.Context) {
	s.sweep(ctx)
}

func (s *RetentionSweeper) maybeSweep(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := !now.Before(s.next)
	if due {
		s.next = s.schedule.Next(now)
	}
	s.mu.Unlock()
	if due {
		s.sweep(ctx)
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.maxAge)
	pruned, err := s.store.PruneToolCalls(ctx, cutoff)
	if err != nil {
		s.logger.Warn("tool call log prune failed", "error", err)
		return
	}
	if pruned > 0 {
		s.logger.Info("tool call log pruned", "rows", pruned, "cutoff", cutoff)
	}
}

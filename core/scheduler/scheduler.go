package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidInterval is returned by Run when the interval is not positive.
var ErrInvalidInterval = errors.New("interval must be greater than zero")

// Scheduler runs a task on a fixed-rate ticker with at most one run in flight.
type Scheduler struct {
	interval time.Duration
	clock    clockwork.Clock
	log      *zap.Logger
	running  *semaphore.Weighted
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New creates a Scheduler firing every interval.
func New(interval time.Duration, log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		interval: interval,
		clock:    clockwork.NewRealClock(),
		log:      log,
		running:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run calls onTick immediately and then once per interval until ctx is done.
// The context handed to onTick is ctx itself, so a running task observes the
// stop request and can wind down at its next checkpoint.
//
// Run returns nil after a clean stop, once the task in flight has returned.
func (s *Scheduler) Run(ctx context.Context, onTick func(context.Context)) error {
	if s.interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	s.fire(ctx, &wg, onTick)

	for {
		select {
		case <-ctx.Done():
			if !s.running.TryAcquire(1) {
				s.log.Info("Waiting for the running synchronization to finish...")
			} else {
				s.running.Release(1)
			}
			wg.Wait()
			s.log.Info("Process terminated safely.")
			return nil
		case <-ticker.Chan():
			if ctx.Err() != nil {
				continue
			}
			s.fire(ctx, &wg, onTick)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, wg *sync.WaitGroup, onTick func(context.Context)) {
	if !s.running.TryAcquire(1) {
		s.log.Info("Skipping tick: previous synchronization still running")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.running.Release(1)
		onTick(ctx)
	}()
}

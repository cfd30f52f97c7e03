package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Cycle performs one sync cycle. cycleID identifies the cycle in logs.
type Cycle func(ctx context.Context, cycleID string) error

// Scheduler runs a [Cycle] on a fixed interval.
//
// The first cycle runs one full interval after Start, never immediately.
// Each tick dispatches the cycle on its own goroutine so a slow request never
// delays the ticker. With single-flight enabled a tick that fires while a
// cycle is still running is skipped; with it disabled cycles may overlap.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	interval     time.Duration
	cycle        Cycle
	singleFlight bool
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	running atomic.Int32
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - interval: time between ticks
//   - cycle: work performed on each tick
//   - singleFlight: skip ticks while a previous cycle is still running
//   - logger: logger for cycle failures and panic recovery
func NewScheduler(interval time.Duration, cycle Cycle, singleFlight bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval:     interval,
		cycle:        cycle,
		singleFlight: singleFlight,
		logger:       logger,
	}
}

// Start begins the tick loop in a background goroutine.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	loopCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.dispatch(loopCtx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for in-flight cycles to return.
//
// In-flight cycles observe cancellation through their context. Stop is
// idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// InFlight returns the number of cycles currently running.
func (s *Scheduler) InFlight() int {
	return int(s.running.Load())
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if s.singleFlight {
		if !s.running.CompareAndSwap(0, 1) {
			s.logger.Debug("sync cycle skipped, previous cycle still running")
			return
		}
	} else {
		s.running.Add(1)
	}

	cycleID := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Add(-1)

		if err := s.runSafe(ctx, cycleID); err != nil {
			s.logger.Warn("sync cycle failed",
				"cycle_id", cycleID,
				"error", err,
			)
		}
	}()
}

// runSafe calls the cycle with panic recovery.
// A panic is logged with its stack and a correlation ID and never escapes
// the scheduler; the next tick runs normally.
func (s *Scheduler) runSafe(ctx context.Context, cycleID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("sync cycle panic",
				"cycle_id", cycleID,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = nil
		}
	}()
	return s.cycle(ctx, cycleID)
}

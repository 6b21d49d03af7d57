package quality

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zero-day-ai/graphqa/internal/observability"
)

// Scheduler runs the battery in the background for a sampled fraction of
// answers. Submitted work keeps the request's trace but not its
// cancellation, and is bounded by its own timeout.
type Scheduler struct {
	battery *Battery
	sampler Sampler
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive timeout means
// DefaultTimeout.
func NewScheduler(battery *Battery, sampler Sampler, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		battery: battery,
		sampler: sampler,
		timeout: timeout,
		logger:  logger,
	}
}

// Submit samples in and, when selected, scores it in a new goroutine. It
// returns whether scoring was started.
func (s *Scheduler) Submit(ctx context.Context, in Input) bool {
	if s == nil || s.battery == nil || !s.sampler.Sample() {
		return false
	}

	ref := TraceRefFromContext(ctx)
	detached := observability.DetachedContext(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()

		s.battery.Run(ctx, ref, in)
	}()
	return true
}

// Wait blocks until in-flight scoring finishes or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
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
		s.logger.WarnContext(ctx, "quality scoring still running at shutdown")
		return ctx.Err()
	}
}

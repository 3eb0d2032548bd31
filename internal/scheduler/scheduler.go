package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per period. It must return before the next
// invocation can be scheduled.
type TickFunc func(ctx context.Context)

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives periodic jobs with a self-correcting cadence: the
// next run is armed only after the previous one settles, so
// invocations never overlap, and the delay accounts for elapsed
// execution time so the period does not drift.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick once per interval until ctx is cancelled.
// A tick that overruns the interval is followed immediately, never
// concurrently.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		start := time.Now()
		tick(ctx)

		if err := ctx.Err(); err != nil {
			return err
		}

		delay := s.opts.Interval - time.Since(start)
		if delay < 0 {
			s.logger.Debug().Dur("overrun", -delay).Msg("tick overran interval")
			delay = 0
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Still honour a cancelled context between back-to-back ticks.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunNeverOverlaps(t *testing.T) {
	var running atomic.Int32
	var ticks atomic.Int32

	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, func(ctx context.Context) {
		if running.Add(1) != 1 {
			t.Error("tick invocations overlap")
		}
		// Overrun the interval on purpose.
		time.Sleep(25 * time.Millisecond)
		running.Add(-1)
		ticks.Add(1)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}

	if got := ticks.Load(); got < 2 {
		t.Fatalf("expected repeated ticks, got %d", got)
	}
}

func TestRunElapsedAwareDelay(t *testing.T) {
	var stamps []time.Time

	s := New(Options{Interval: 40 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Run(ctx, func(ctx context.Context) {
		stamps = append(stamps, time.Now())
		if len(stamps) == 3 {
			cancel()
			return
		}
		time.Sleep(15 * time.Millisecond) // tick cost is absorbed by the delay
	})

	if len(stamps) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < 35*time.Millisecond || gap > 80*time.Millisecond {
			t.Fatalf("tick gap %d out of bounds: %s", i, gap)
		}
	}
}

func TestRunHonoursStartupDelayCancellation(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Minute}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context) {
		t.Error("tick must not run after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

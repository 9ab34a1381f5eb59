// Package scheduling provides the absolute-deadline sleep helper the
// per-axis pulse loop uses. The worker pool behind movement's per-axis
// dispatch lives in package movement, not here.
package scheduling

import (
	"context"
	"time"
)

// SleepUntil blocks until the absolute deadline, or ctx is done, whichever
// comes first. Sleeping to an absolute deadline (rather than a relative
// delay computed fresh each iteration) avoids the cumulative drift spec.md
// §4.1/§5 warns against: a relative time.Sleep(d) after each iteration's
// own bookkeeping accumulates scheduling jitter across iterations, while
// sleeping to a deadline anchored at loop start does not.
func SleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepUntilUS is a convenience wrapper over SleepUntil for the pulse
// engine's microsecond-resolution absolute deadlines, expressed relative to
// a monotonic start instant plus an elapsed-microseconds counter.
func SleepUntilUS(ctx context.Context, start time.Time, elapsedUS uint64) error {
	return SleepUntil(ctx, start.Add(time.Duration(elapsedUS)*time.Microsecond))
}

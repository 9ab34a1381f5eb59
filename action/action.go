// Package action holds the FSM's transition actions (spec.md §4.5): the
// code that runs while moving between states. Every action is
// cooperatively cancellation-aware, polling the shared fault flag at
// checkpoints between steps rather than relying on a cancel exception
// (spec.md §5).
package action

import (
	"context"
	"errors"
	"time"

	"github.com/agrigantry/gantry/device"
	"github.com/agrigantry/gantry/movement"
	"github.com/agrigantry/gantry/profile"
	"github.com/agrigantry/gantry/state"
)

// ErrAborted is returned by an action when a checkpoint observes the
// fault flag set mid-run.
var ErrAborted = errors.New("action: aborted by fault checkpoint")

// Deps bundles everything an action needs: the shared state, the motion
// coordinator, and the liquid-exchange triggers for refilling.
type Deps struct {
	State                *state.Shared
	Movement             *movement.Coordinator
	EStop                device.DigitalInput
	ExchangeWater        func(ctx context.Context) error
	ExchangeDisinfectant func(ctx context.Context) error
}

// faultCheck adapts Deps.State into the func() bool every cooperative
// cancellation point in axis/movement expects.
func (d Deps) faultCheck() func() bool {
	return func() bool { return d.State.Snapshot().Fault }
}

// checkpoint returns ErrAborted if the fault flag is currently set,
// otherwise nil. Actions call this between steps that movement/axis
// itself doesn't already guard (e.g. between two independent Coordinator
// calls).
func checkpoint(d Deps) error {
	if d.State.Snapshot().Fault {
		return ErrAborted
	}
	return nil
}

// Start runs on entry to running: marks the process running and clears
// any stale per-task flags left over from a previous run.
func Start(ctx context.Context, d Deps) error {
	d.State.SetRunning(true)
	d.State.NoTaskEntry()
	return nil
}

// Stop disables all motors and marks the process not running. Called on
// the transition into terminated.
func Stop(ctx context.Context, d Deps) error {
	_ = d.Movement.DisableMotors(ctx)
	d.State.SetRunning(false)
	return nil
}

// Fault enters the faulted state: stop motion immediately, disable
// motors, and set the fault flag (optionally preserving manual mode for
// an operator-initiated e-stop recovery path).
func Fault(ctx context.Context, d Deps, keepManual bool) error {
	d.Movement.Stop()
	_ = d.Movement.DisableMotors(ctx)
	d.State.SetFault(true, keepManual)
	return nil
}

// Restart clears the fault flag and re-homes before returning to
// no_task, per spec.md §4.5's fault::restart transition.
func Restart(ctx context.Context, d Deps) error {
	d.State.SetFault(false, false)
	if err := d.Movement.Homing(ctx, d.faultCheck()); err != nil {
		return err
	}
	return checkpoint(d)
}

// SprayingJob runs the spraying task: move to the spraying position, then
// follow the configured spraying path, marking running/complete at the
// edges per spec.md §4.3/§4.5.
func SprayingJob(ctx context.Context, d Deps) error {
	if !d.State.SetTaskRunning(state.Spraying, true) {
		return nil
	}
	defer d.State.SetTaskRunning(state.Spraying, false)

	d.Movement.SetPhaseBand(phaseFor(state.Spraying), bandFromState(d))
	if err := d.Movement.MoveToSprayingPosition(ctx, d.faultCheck()); err != nil {
		return err
	}
	if err := checkpoint(d); err != nil {
		return err
	}
	if err := d.Movement.FollowSprayingPath(ctx, d.faultCheck()); err != nil {
		return err
	}
	if err := checkpoint(d); err != nil {
		return err
	}
	d.State.SetTaskComplete(state.Spraying, true)
	return nil
}

// SprayingComplete marks the spraying task done, per spec.md §4.5's
// spraying::complete transition guard.
func SprayingComplete(ctx context.Context, d Deps) error {
	d.State.SetTaskComplete(state.Spraying, true)
	return nil
}

// TendingJob runs the tending task: move into position, then follow the
// edge path once and the zigzag path once.
func TendingJob(ctx context.Context, d Deps) error {
	if !d.State.SetTaskRunning(state.Tending, true) {
		return nil
	}
	defer d.State.SetTaskRunning(state.Tending, false)

	d.Movement.SetPhaseBand(phaseFor(state.Tending), bandFromState(d))
	if err := d.Movement.MoveToTendingPosition(ctx, d.faultCheck()); err != nil {
		return err
	}
	if err := checkpoint(d); err != nil {
		return err
	}
	if err := d.Movement.FollowTendingPathEdge(ctx, d.faultCheck()); err != nil {
		return err
	}
	if err := checkpoint(d); err != nil {
		return err
	}
	return d.Movement.FollowTendingPathZigzag(ctx, d.faultCheck())
}

// TendingComplete marks the tending task done.
func TendingComplete(ctx context.Context, d Deps) error {
	d.State.SetTaskComplete(state.Tending, true)
	return nil
}

// CleaningJob visits every configured cleaning station in order, dwelling
// (cooperatively cancellable) at each. A station's Sonicator flag is not
// read: no sonicator output is driven.
func CleaningJob(ctx context.Context, d Deps) error {
	if !d.State.SetTaskRunning(state.Cleaning, true) {
		return nil
	}
	defer d.State.SetTaskRunning(state.Cleaning, false)

	d.Movement.SetPhaseBand(phaseFor(state.Cleaning), bandFromState(d))
	for _, station := range d.Movement.CleaningStations() {
		if err := checkpoint(d); err != nil {
			return err
		}
		pos := d.Movement.Position()
		if err := d.Movement.Move(ctx, station.X-pos.X, station.Y-pos.Y, 0, profile.MM, d.faultCheck()); err != nil {
			return err
		}
		if err := dwell(ctx, d, time.Duration(station.DwellSecs*float64(time.Second))); err != nil {
			return err
		}
	}
	return nil
}

// CleaningComplete marks the cleaning task done.
func CleaningComplete(ctx context.Context, d Deps) error {
	d.State.SetTaskComplete(state.Cleaning, true)
	return nil
}

// dwell sleeps for d, checking the fault flag every 50ms so a cleaning
// dwell is interruptible rather than blocking the whole duration.
func dwell(ctx context.Context, deps Deps, d time.Duration) error {
	const pollInterval = 50 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		if err := checkpoint(deps); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// ExchangeWaterRefill runs the configured water-exchange hook and
// records the refill's completion timestamps.
func ExchangeWaterRefill(ctx context.Context, d Deps, period time.Duration) error {
	d.State.SetRefillRunning(state.Water, true, time.Now(), period)
	var err error
	if d.ExchangeWater != nil {
		err = d.ExchangeWater(ctx)
	}
	d.State.SetRefillRunning(state.Water, false, time.Now(), period)
	return err
}

// ExchangeDisinfectantRefill is the disinfectant analogue of
// ExchangeWaterRefill.
func ExchangeDisinfectantRefill(ctx context.Context, d Deps, period time.Duration) error {
	d.State.SetRefillRunning(state.Disinfectant, true, time.Now(), period)
	var err error
	if d.ExchangeDisinfectant != nil {
		err = d.ExchangeDisinfectant(ctx)
	}
	d.State.SetRefillRunning(state.Disinfectant, false, time.Now(), period)
	return err
}

// phaseFor maps a task kind to its speed-profile phase.
func phaseFor(kind state.TaskKind) profile.Phase {
	switch kind {
	case state.Spraying:
		return profile.Spraying
	case state.Tending:
		return profile.Tending
	default:
		return profile.Cleaning
	}
}

// bandFromState picks Normal unless manual mode is active, in which case
// jogs run Slow — a conservative default until an operator control surface
// selects otherwise.
func bandFromState(d Deps) profile.Band {
	if d.State.Snapshot().ManualMode {
		return profile.Slow
	}
	return profile.Normal
}

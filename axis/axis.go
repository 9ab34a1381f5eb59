// Package axis wraps one pulse.Engine with its limit switch and configured
// steps-per-mm, implementing homing and single-axis moves (spec.md §4.2).
package axis

import (
	"context"
	"errors"
	"time"

	"github.com/agrigantry/gantry/device"
	"github.com/agrigantry/gantry/pulse"
	"github.com/agrigantry/gantry/scheduling"
)

// Name identifies one of the three gantry axes.
type Name int

const (
	X Name = iota
	Y
	Z
)

func (n Name) String() string {
	switch n {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "unknown"
	}
}

// HomingConfig parameters, per spec.md §4.2 and §6 (mechanisms.fault.manual
// jog distances are analogous small moves, loaded the same way).
type HomingConfig struct {
	// TravelEnvelopeSteps bounds the "longer than the travel envelope" move
	// used to seek the limit switch.
	TravelEnvelopeSteps int64
	// BackoffSteps is the small back-off after the first trip.
	BackoffSteps int64
	Profile      pulse.SpeedProfile
	// DebounceProfile is used for the slow second approach.
	DebounceProfile pulse.SpeedProfile
}

// Axis owns one stepper, one limit switch, and one pulse engine.
type Axis struct {
	Name        Name
	StepsPerMM  float64
	engine      *pulse.Engine
	stepper     device.Stepper
	limitSwitch device.DigitalInput
	homing      HomingConfig

	positionSteps int64
	enabled       bool
}

// New constructs an Axis.
func New(name Name, stepsPerMM float64, params pulse.Params, stepper device.Stepper, limitSwitch device.DigitalInput, homing HomingConfig) *Axis {
	return &Axis{
		Name:        name,
		StepsPerMM:  stepsPerMM,
		engine:      pulse.NewEngine(params),
		stepper:     stepper,
		limitSwitch: limitSwitch,
		homing:      homing,
	}
}

// MMToSteps converts a millimetre delta to a signed step count.
func (a *Axis) MMToSteps(mm float64) int64 {
	return int64(mm * a.StepsPerMM)
}

// PositionSteps returns the axis's current commanded position in steps,
// relative to its last home.
func (a *Axis) PositionSteps() int64 { return a.positionSteps }

// Enable enables the motor driver.
func (a *Axis) Enable(ctx context.Context) error {
	if a.enabled {
		return nil
	}
	if err := a.stepper.Enable(ctx); err != nil {
		return err
	}
	a.enabled = true
	return nil
}

// Disable disables the motor driver. Called on fault and shutdown
// (spec.md §4.3 disable_motors).
func (a *Axis) Disable(ctx context.Context) error {
	if !a.enabled {
		return nil
	}
	if err := a.stepper.Disable(ctx); err != nil {
		return err
	}
	a.enabled = false
	return nil
}

// Ready reports whether the axis is enabled and its engine idle.
func (a *Axis) Ready() bool {
	return a.enabled && a.engine.Remaining() == 0
}

// stopPredicate returns a predicate for pulse.Engine.Next that polls the
// caller-supplied fault check (when non-nil) and, when checkLimit is set,
// the limit switch.
func (a *Axis) stopPredicate(ctx context.Context, checkLimit bool, faultCheck func() bool) func() bool {
	return func() bool {
		if faultCheck != nil && faultCheck() {
			return true
		}
		if checkLimit {
			active, err := a.limitSwitch.ReadBool(ctx)
			if err != nil {
				return false // DeviceTransientError: treat as "unknown", not "active"
			}
			return active
		}
		return false
	}
}

// runMove drives the engine to completion, sleeping to an absolute deadline
// between pulses, toggling direction before the first pulse of the move and
// stepping the stepper once per emitted pulse.
func (a *Axis) runMove(ctx context.Context, steps int64, mode pulse.Mode, profile pulse.SpeedProfile, deadlineUS uint64, checkLimit bool, faultCheck func() bool) (stepsDone int64, err error) {
	if err := a.Enable(ctx); err != nil {
		return 0, err
	}

	a.engine.StartMove(steps, mode, profile, deadlineUS)
	if err := a.stepper.SetDirection(ctx, a.engine.Direction()); err != nil {
		return 0, err
	}

	start := time.Now()
	var elapsedUS uint64
	stop := a.stopPredicate(ctx, checkLimit, faultCheck)

	for {
		remainingBefore := a.engine.Remaining()
		interval := a.engine.Next(stop)
		if interval == 0 {
			break
		}
		if err := a.stepper.Step(ctx); err != nil {
			return stepsDone, err
		}
		stepsDone++
		_ = remainingBefore
		elapsedUS += interval
		if err := scheduling.SleepUntilUS(ctx, start, elapsedUS); err != nil {
			return stepsDone, err
		}
	}

	delta := stepsDone
	if !a.engine.Direction() {
		delta = -delta
	}
	a.positionSteps += delta
	return stepsDone, nil
}

// MoveSteps moves the axis the given signed step count under the given
// mode/profile, optionally bounded by an absolute deadline. faultCheck, if
// non-nil, is polled every pulse and aborts the move the instant it
// reports true (cooperative cancellation, spec.md §5).
func (a *Axis) MoveSteps(ctx context.Context, steps int64, mode pulse.Mode, profile pulse.SpeedProfile, deadlineUS uint64, faultCheck func() bool) (int64, error) {
	return a.runMove(ctx, steps, mode, profile, deadlineUS, false, faultCheck)
}

// Stop forwards to the pulse engine, returning pending steps.
func (a *Axis) Stop() uint32 {
	return a.engine.Stop()
}

var errHomingAborted = errors.New("axis: homing aborted")

// Home implements the 5-step homing algorithm from spec.md §4.2, using the
// homing speed profile rather than any task profile. It is idempotent:
// calling it from an already-homed state still performs a single
// debounce cycle, per spec.md §8.
func (a *Axis) Home(ctx context.Context, faultCheck func() bool) error {
	if err := a.Enable(ctx); err != nil {
		return err
	}

	// 1+2: seek toward the limit switch with a move longer than the travel
	// envelope, stopping when the switch trips.
	if _, err := a.runMove(ctx, -a.homing.TravelEnvelopeSteps, pulse.Linear, a.homing.Profile, 0, true, faultCheck); err != nil {
		return err
	}
	if faultCheck != nil && faultCheck() {
		return errHomingAborted
	}

	// 3: back off a small configured amount in the opposite direction.
	if _, err := a.runMove(ctx, a.homing.BackoffSteps, pulse.Linear, a.homing.DebounceProfile, 0, false, faultCheck); err != nil {
		return err
	}
	if faultCheck != nil && faultCheck() {
		return errHomingAborted
	}

	// 4: advance toward the limit at low (debounce) speed until it trips
	// again.
	if _, err := a.runMove(ctx, -a.homing.TravelEnvelopeSteps, pulse.Linear, a.homing.DebounceProfile, 0, true, faultCheck); err != nil {
		return err
	}
	if faultCheck != nil && faultCheck() {
		return errHomingAborted
	}

	// 5: mark axis position 0.
	a.positionSteps = 0
	return nil
}

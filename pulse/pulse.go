// Package pulse implements per-axis step-pulse generation with constant or
// linearly ramped speed, following the Atmel AVR446 integer recurrence for
// the accelerate/cruise/decelerate profile.
package pulse

import (
	"math"
)

// Mode selects the speed profile a Move runs under, replacing the source's
// StepperDeviceImpl<speed> hierarchy with a plain variant dispatched on in
// the recurrence update (spec.md Design Notes §9).
type Mode int

const (
	// Constant runs the whole move at one fixed inter-pulse delay.
	Constant Mode = iota
	// Linear ramps speed using the AVR446 recurrence.
	Linear
)

// Phase is the axis's derived motion phase, computed from the counters on
// every call — never stored redundantly.
type Phase int

const (
	Stopped Phase = iota
	Accelerating
	Cruising
	Decelerating
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Accelerating:
		return "accelerating"
	case Cruising:
		return "cruising"
	case Decelerating:
		return "decelerating"
	default:
		return "unknown"
	}
}

// Params configures one Engine's motor characteristics; constant across all
// moves on this axis.
type Params struct {
	MotorSteps int // full steps per revolution, e.g. 200
	Microsteps int // microstep factor, e.g. 1,2,4,8,16
}

// SpeedProfile is one phase×band×axis entry from spec.md §3; RPM,
// Acceleration and Deceleration must all be > 0.
type SpeedProfile struct {
	RPM          float64
	Acceleration float64 // steps/s^2
	Deceleration float64 // steps/s^2
}

// minHighTimeUS is the minimum step-pin high time / minimum inter-pulse
// interval, per spec.md §4.1 edge cases.
const minHighTimeUS = 1

// Engine generates pulses for exactly one axis. It is not safe for
// concurrent use from more than one goroutine at a time; Axis serializes
// calls onto one worker.
type Engine struct {
	params Params

	mode      Mode
	direction bool // true = forward

	remainingSteps uint32
	stepCount      uint32

	stepsToCruise uint32
	stepsToBrake  uint32

	stepPulseUS      float64
	cruiseStepPulse  float64
	restCorrection   int64
	lastPulseEndUS   uint64
	nextIntervalUS   uint64
	constantModeOnly bool
}

// NewEngine constructs a pulse engine for one axis.
func NewEngine(p Params) *Engine {
	return &Engine{params: p}
}

// Direction reports the current direction (true = forward).
func (e *Engine) Direction() bool { return e.direction }

// Remaining reports the steps not yet emitted.
func (e *Engine) Remaining() uint32 { return e.remainingSteps }

// Phase derives the current motion phase from the counters, per spec.md
// §4.1: remaining<=stepsToBrake -> decelerating; stepCount<=stepsToCruise ->
// accelerating; else cruising. Stopped is reported once remainingSteps==0.
func (e *Engine) Phase() Phase {
	if e.remainingSteps == 0 {
		return Stopped
	}
	if e.constantModeOnly {
		return Cruising
	}
	if e.remainingSteps <= e.stepsToBrake {
		return Decelerating
	}
	if e.stepCount <= e.stepsToCruise {
		return Accelerating
	}
	return Cruising
}

// CalcStepPulseUSFromRPM implements the constant-speed formula from
// spec.md §8 invariant 1: 60e6 / (motorSteps * microsteps * rpm).
func CalcStepPulseUSFromRPM(motorSteps, microsteps int, rpm float64) float64 {
	if motorSteps <= 0 || microsteps <= 0 || rpm <= 0 {
		return 0
	}
	return 60e6 / (float64(motorSteps) * float64(microsteps) * rpm)
}

// StartMove initializes the engine for a move of the given signed step
// count (negative = backward) under the given profile and mode. deadlineUS,
// if > 0, caps the total move time; the target speed is clamped so the
// whole move fits. steps==0 leaves the engine stopped (no-op), satisfying
// the spec.md §8 boundary behaviour.
func (e *Engine) StartMove(steps int64, mode Mode, profile SpeedProfile, deadlineUS uint64) {
	e.mode = mode
	e.direction = steps >= 0
	n := steps
	if n < 0 {
		n = -n
	}
	e.remainingSteps = uint32(n)
	e.stepCount = 0
	e.restCorrection = 0
	e.stepsToCruise = 0
	e.stepsToBrake = 0
	e.lastPulseEndUS = 0
	e.nextIntervalUS = 0
	e.constantModeOnly = mode == Constant

	if e.remainingSteps == 0 {
		return
	}

	ms := e.params.Microsteps
	if ms <= 0 {
		ms = 1
	}

	if mode == Constant {
		pulse := CalcStepPulseUSFromRPM(e.params.MotorSteps, ms, profile.RPM)
		if deadlineUS > 0 {
			fromDeadline := float64(deadlineUS) / float64(e.remainingSteps)
			if fromDeadline > pulse {
				pulse = fromDeadline
			}
		}
		if pulse < minHighTimeUS {
			pulse = minHighTimeUS
		}
		e.stepPulseUS = pulse
		e.cruiseStepPulse = pulse
		return
	}

	// Linear mode: AVR446 recurrence setup.
	speedSPS := profile.RPM * float64(e.params.MotorSteps) / 60
	v := speedSPS

	if deadlineUS > 0 {
		d := float64(e.remainingSteps) / float64(ms) // full steps of travel
		t := float64(deadlineUS) / 1e6
		a1 := profile.Acceleration
		a2dec := profile.Deceleration
		if a1 > 0 && a2dec > 0 && d > 0 && t > 0 {
			a2 := 1/a1 + 1/a2dec
			disc := t*t - 2*a2*d
			if disc >= 0 {
				vFeasible := (t - math.Sqrt(disc)) / a2
				if vFeasible < v {
					v = vFeasible
				}
			}
		}
	}
	if v <= 0 {
		v = speedSPS
	}

	stepsToCruise := uint32(float64(ms) * v * v / (2 * profile.Acceleration))
	stepsToBrake := uint32(float64(stepsToCruise) * profile.Acceleration / profile.Deceleration)

	if uint64(stepsToCruise)+uint64(stepsToBrake) > uint64(e.remainingSteps) {
		stepsToCruise = uint32(float64(e.remainingSteps) * profile.Deceleration / (profile.Acceleration + profile.Deceleration))
		stepsToBrake = e.remainingSteps - stepsToCruise
	}

	e.stepsToCruise = stepsToCruise
	e.stepsToBrake = stepsToBrake

	// Initial pulse c0 = 0.676e6 * sqrt(2/(accel*microsteps)) us.
	e.stepPulseUS = 0.676e6 * math.Sqrt(2/(profile.Acceleration*float64(ms)))
	e.cruiseStepPulse = 1e6 / (v * float64(ms))
}

// Next emits one pulse's worth of state advance and returns the number of
// microseconds the caller should wait before calling Next again. It
// returns 0 when the move is complete, or stopPredicate reports true.
//
// Next does not itself sleep or touch hardware: callers raise/lower the
// step pin and hold the direction pin stable around the call, then sleep
// the returned interval using scheduling.SleepUntil against an absolute
// deadline (spec.md §4.1 "Timing").
func (e *Engine) Next(stopPredicate func() bool) uint64 {
	if e.remainingSteps == 0 {
		return 0
	}
	if stopPredicate != nil && stopPredicate() {
		e.remainingSteps = 0
		return 0
	}

	interval := e.currentIntervalUS()

	e.remainingSteps--
	e.stepCount++
	e.advance()

	if interval < minHighTimeUS {
		interval = minHighTimeUS
	}
	e.nextIntervalUS = uint64(interval)
	return e.nextIntervalUS
}

// currentIntervalUS returns the pulse interval to use for the step about to
// be emitted, before the recurrence update for the *next* step is applied.
func (e *Engine) currentIntervalUS() float64 {
	return e.stepPulseUS
}

// advance applies the AVR446 recurrence to step_pulse/rest_correction,
// preparing the interval for the *next* call. It runs after remainingSteps/
// stepCount have already been updated for the step just emitted — matching
// stepper.cpp's StepperDeviceImpl<linear>::calc_step_pulse, which
// decrements/increments its counters before computing the recurrence, so
// the first accelerating update sees stepCount==1 (denom=5), not
// stepCount==0 (denom=1). In cruising phase there is no update. The dead
// second assignment to rest present in the source (spec.md Design Notes §9)
// is intentionally not reproduced.
func (e *Engine) advance() {
	if e.constantModeOnly {
		return
	}

	switch e.Phase() {
	case Accelerating:
		denom := 4*int64(e.stepCount) + 1
		numer := int64(2*e.stepPulseUS) + e.restCorrection
		e.stepPulseUS -= float64(numer / denom)
		e.restCorrection = numer % denom
		if e.stepCount >= e.stepsToCruise {
			e.stepPulseUS = e.cruiseStepPulse
		}
	case Decelerating:
		denom := -4*int64(e.remainingSteps) + 1
		numer := int64(2*e.stepPulseUS) + e.restCorrection
		if denom != 0 {
			e.stepPulseUS -= float64(numer / denom)
			e.restCorrection = numer % denom
		} else {
			e.restCorrection = 0
		}
	case Cruising:
		// no update
	}
}

// Stop forces the move to end immediately, returning the steps that were
// still pending. Idempotent: calling it again returns 0.
func (e *Engine) Stop() uint32 {
	pending := e.remainingSteps
	e.remainingSteps = 0
	return pending
}

// Package guard holds the pure predicate functions the FSM's transition
// table consults before taking an edge (spec.md §4.5). Every guard reads
// a state.Snapshot (or a height sensor reading) and returns a bool; none
// has side effects.
package guard

import (
	"github.com/agrigantry/gantry/state"
)

// MachineReady reports whether the process is alive and not already
// faulted — the common precondition for leaving initial/no_task.
func MachineReady(s state.Snapshot) bool {
	return s.Running && !s.Fault
}

// EStop reports whether an emergency-stop condition should trigger
// fault::trigger; callers pass the raw digital input reading since EStop
// itself is not state-derived.
func EStop(pressed bool) bool {
	return pressed
}

// Reset reports whether a fault::restart should be allowed: only once the
// fault flag is already set and manual mode is not engaged (manual faults
// clear on their own restart path, guarded by Restart below).
func Reset(s state.Snapshot) bool {
	return s.Fault && !s.ManualMode
}

// Fault reports whether the machine is currently in a faulted state.
func Fault(s state.Snapshot) bool {
	return s.Fault
}

// Restart reports whether a fault::restart event may re-enter running:
// fault must be set, and manual mode, if set, must have been explicitly
// preserved for an operator-initiated restart.
func Restart(s state.Snapshot) bool {
	return s.Fault
}

// SprayingCompleted reports whether the spraying task has finished.
func SprayingCompleted(s state.Snapshot) bool {
	return s.SprayingComplete
}

// TendingCompleted reports whether the tending task has finished.
func TendingCompleted(s state.Snapshot) bool {
	return s.TendingComplete
}

// CleaningCompleted reports whether the cleaning task has finished.
func CleaningCompleted(s state.Snapshot) bool {
	return s.CleaningComplete
}

// HeightBand classifies a PLC height-sensor reading (in mm) into the two
// bands the no_task dispatcher distinguishes, per spec.md §4.5's
// height::spraying_tending / height::cleaning events.
type HeightBand int

const (
	HeightUnknown HeightBand = iota
	HeightSprayingTending
	HeightCleaning
)

// ClassifyHeight buckets a raw height-sensor reading using the two
// configured thresholds (mm). Readings at or below sprayingTendingMaxMM
// are HeightSprayingTending; readings at or above cleaningMinMM are
// HeightCleaning; anything in between is HeightUnknown (no dispatch).
func ClassifyHeight(heightMM, sprayingTendingMaxMM, cleaningMinMM float64) HeightBand {
	switch {
	case heightMM <= sprayingTendingMaxMM:
		return HeightSprayingTending
	case heightMM >= cleaningMinMM:
		return HeightCleaning
	default:
		return HeightUnknown
	}
}

// SprayingReady reports whether the spraying task may be dispatched from
// no_task: ready, not already running, and nothing else in flight.
func SprayingReady(s state.Snapshot) bool {
	return s.SprayingReady && !s.AnyTaskRunning() && !s.Fault
}

// TendingReady reports the analogous precondition for tending.
func TendingReady(s state.Snapshot) bool {
	return s.TendingReady && !s.AnyTaskRunning() && !s.Fault
}

// CleaningReady reports the analogous precondition for cleaning.
func CleaningReady(s state.Snapshot) bool {
	return s.CleaningReady && !s.AnyTaskRunning() && !s.Fault
}

// RefillDue reports whether a scheduled refill's next-executed deadline
// has passed and it isn't already running.
func RefillDue(requested, running bool) bool {
	return requested && !running
}

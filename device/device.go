// Package device defines the contracts the motion-control core consumes
// from its leaf hardware drivers. Nothing in this package talks to real
// GPIO, PWM, or i2c hardware: every type here is a trait, implemented
// externally (periph.io, raspi bindings, or a fake in tests).
package device

import "context"

// Level is a logical digital level, already corrected for the configured
// active-high/active-low polarity of the pin it addresses.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// DigitalInput is a named, polarity-corrected boolean input: a limit switch,
// the E-stop, the reset button, a PLC height signal, or the finger
// protection switch.
type DigitalInput interface {
	// ReadBool returns the logical active state. A transient driver failure
	// is surfaced as (false, error); callers treat that as "unknown" per the
	// DeviceTransientError policy, never as "active".
	ReadBool(ctx context.Context) (bool, error)
}

// DigitalOutput is a named output pin, or a shift-register-virtualised
// output addressed by (chip, bit) behind the scenes.
type DigitalOutput interface {
	// Write sets the output level. A transient driver failure is surfaced
	// as an error; the caller treats that write as failed (ERR) per the
	// DeviceTransientError policy.
	Write(ctx context.Context, level Level) error
}

// PWM is the duty-cycle/frequency contract used for the finger motor.
type PWM interface {
	DutyCycle(value float64) error
	Frequency(hz float64) error
	// Hardware drives the channel via hardware PWM in one call, for
	// controllers that can't independently set duty cycle and frequency.
	Hardware(freqHz, duty float64) error
}

// Stepper composes the primitives an Axis needs to drive one stepper motor.
type Stepper interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	// Step raises the step pin for at least minStepHigh, then lowers it.
	// Implementations must guarantee the high time; the pulse engine only
	// decides timing between calls, not within one.
	Step(ctx context.Context) error
	// SetDirection writes the direction pin. Callers must call this before
	// the edge it governs and allow it to settle for at least one high-time.
	SetDirection(ctx context.Context, forward bool) error
}

// Ultrasonic is the distance-sensor contract (HC-SR04-style). Distance
// returns (measured distance in cm, true), or (0, false) on timeout (no
// echo within maxCM's expected round-trip window). The 10µs trigger pulse
// and echo-edge timing are the driver's concern; only the contract is
// visible to the core, and the core has no Non-goal use for it beyond the
// finger-protection / analog contracts wired in SPEC_FULL.md §6.
type Ultrasonic interface {
	Distance(ctx context.Context, maxCM float64) (float64, bool)
}

// AnalogInput is an ADC channel contract (PCF8591-style), returning an
// 8-bit sample. Used only to back threshold-style guards (e.g. finger
// protection); the core never closes a feedback loop on it (Non-goal).
type AnalogInput interface {
	Read(ctx context.Context) (uint8, error)
}

// ShiftRegister addresses outputs virtualised behind a daisy-chained shift
// register, per original_source/libdevice/shift_register.hpp. Set stages a
// single bit; WriteAll flushes every staged bit to the hardware atomically.
type ShiftRegister interface {
	Set(chip, bit int, level Level)
	// WriteAll flushes every output atomically. Per spec.md's open question
	// about the undeclared write_all: on AllLow, every virtualised output is
	// set to Low before the flush.
	WriteAll(ctx context.Context) error
	// AllLow stages every known output to Low, ready for WriteAll. No code
	// in this module calls it; the fault and stop actions do not drive
	// shift-register outputs.
	AllLow()
}

// a4988MicrostepBits is the bit-position-indexed microstep table from
// original_source/libdevice/A4988.hpp: {0b000,0b001,0b010,0b011,0b111} for
// microstep factors 1,2,4,8,16 respectively.
var a4988MicrostepBits = [5]uint8{0b000, 0b001, 0b010, 0b011, 0b111}

// MicrostepBits looks up the MS1/MS2/MS3 bit pattern for a microstep factor
// that must be a power of two in [1,16]. ok is false for any other value.
func MicrostepBits(microsteps int) (bits uint8, ok bool) {
	switch microsteps {
	case 1:
		return a4988MicrostepBits[0], true
	case 2:
		return a4988MicrostepBits[1], true
	case 4:
		return a4988MicrostepBits[2], true
	case 8:
		return a4988MicrostepBits[3], true
	case 16:
		return a4988MicrostepBits[4], true
	default:
		return 0, false
	}
}

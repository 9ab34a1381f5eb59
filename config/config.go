// Package config loads the read-only-at-startup TOML file spec.md §6
// describes, using github.com/BurntSushi/toml the way the teacher repo
// parses its own config files.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// General holds general.* keys.
type General struct {
	Name    string `toml:"name"`
	Debug   bool   `toml:"debug"`
	Timeout int    `toml:"timeout"` // seconds
}

// SpeedBand holds one mechanisms.<phase>.speed.<band>.<axis> entry.
type SpeedBand struct {
	RPM          float64 `toml:"rpm"`
	Acceleration float64 `toml:"acceleration"`
	Deceleration float64 `toml:"deceleration"`
}

// AxisSpeedTable holds the per-axis entries for one speed band.
type AxisSpeedTable struct {
	X SpeedBand `toml:"x"`
	Y SpeedBand `toml:"y"`
	Z SpeedBand `toml:"z"`
}

// SpeedTable holds the slow/normal/fast bands for one phase.
type SpeedTable struct {
	Slow   AxisSpeedTable `toml:"slow"`
	Normal AxisSpeedTable `toml:"normal"`
	Fast   AxisSpeedTable `toml:"fast"`
}

// Finger holds mechanisms.<phase>.finger.* keys.
type Finger struct {
	DutyCycle float64 `toml:"duty-cycle"`
	Threshold uint8   `toml:"threshold"`
}

// Coordinate mirrors a {x,y,z} or {x,y} TOML table.
type Coordinate struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
	Z float64 `toml:"z"`
}

// Path is an ordered list of coordinate deltas.
type Path []Coordinate

// Station mirrors one mechanisms.cleaning.stations[] entry.
type Station struct {
	X         float64 `toml:"x"`
	Y         float64 `toml:"y"`
	Time      float64 `toml:"time"`
	Sonicator bool    `toml:"sonicator"`
}

// SprayingMechanism holds mechanisms.spraying.*.
type SprayingMechanism struct {
	Speed    SpeedTable `toml:"speed"`
	Finger   Finger     `toml:"finger"`
	Position Coordinate `toml:"position"`
	Path     Path       `toml:"path"`
}

// TendingPath holds mechanisms.tending.path.{edge,zigzag}.
type TendingPath struct {
	Edge   Path `toml:"edge"`
	Zigzag Path `toml:"zigzag"`
}

// TendingMechanism holds mechanisms.tending.*.
type TendingMechanism struct {
	Speed    SpeedTable  `toml:"speed"`
	Finger   Finger      `toml:"finger"`
	Position Coordinate  `toml:"position"`
	Path     TendingPath `toml:"path"`
}

// CleaningMechanism holds mechanisms.cleaning.*.
type CleaningMechanism struct {
	Speed    SpeedTable `toml:"speed"`
	Finger   Finger     `toml:"finger"`
	Stations []Station  `toml:"stations"`
}

// ManualJog holds mechanisms.fault.manual.{x,y,z}, jog distances in mm.
type ManualJog struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
	Z float64 `toml:"z"`
}

// FaultMechanism holds mechanisms.fault.*.
type FaultMechanism struct {
	Speed  SpeedTable `toml:"speed"`
	Manual ManualJog  `toml:"manual"`
}

// HomingMechanism holds mechanisms.homing.*.
type HomingMechanism struct {
	Speed SpeedTable `toml:"speed"`
}

// Mechanisms holds mechanisms.*.
type Mechanisms struct {
	Spraying SprayingMechanism `toml:"spraying"`
	Tending  TendingMechanism  `toml:"tending"`
	Cleaning CleaningMechanism `toml:"cleaning"`
	Fault    FaultMechanism    `toml:"fault"`
	Homing   HomingMechanism   `toml:"homing"`
}

// StepperAxis holds stepper.<axis>.*.
type StepperAxis struct {
	StepsPerMM float64 `toml:"steps-per-mm"`
	Key        string  `toml:"key"`
}

// Stepper holds stepper.*.
type Stepper struct {
	X StepperAxis `toml:"x"`
	Y StepperAxis `toml:"y"`
	Z StepperAxis `toml:"z"`
}

// UltrasonicSensor holds one ultrasonic.<name>.* entry.
type UltrasonicSensor struct {
	MaxRange float64 `toml:"max-range"`
	Key      string  `toml:"key"`
}

// Refilling holds the water/disinfectant exchange parameters from
// original_source/libmechanism/liquid-refilling.hpp/.cpp, supplementing
// spec.md's Open Question about the exchange body.
type Refilling struct {
	DrainTimeSecs float64 `toml:"drain-time"`
	FillTimeSecs  float64 `toml:"fill-time"`
	PeriodHours   float64 `toml:"period-hours"`
	ValveInKey    string  `toml:"valve-in-key"`
	ValveOutKey   string  `toml:"valve-out-key"`
}

// Config is the full read-only-at-startup configuration tree, per spec.md
// §6.
type Config struct {
	General    General                     `toml:"general"`
	Mechanisms Mechanisms                  `toml:"mechanisms"`
	Stepper    Stepper                     `toml:"stepper"`
	Ultrasonic map[string]UltrasonicSensor `toml:"ultrasonic"`
	Refilling  struct {
		Water        Refilling `toml:"water"`
		Disinfectant Refilling `toml:"disinfectant"`
	} `toml:"refilling"`
}

// Load parses the TOML file at path into Config. Any parse or missing-file
// error is an InitError per spec.md §7: fatal, surfaced to the caller for
// a nonzero exit.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field invariants a malformed TOML file could
// otherwise silently violate (all zero values being individually legal
// Go zero values, but not legal configuration).
func (c *Config) Validate() error {
	if c.General.Timeout <= 0 {
		return fmt.Errorf("config: general.timeout must be > 0")
	}
	for _, axis := range []StepperAxis{c.Stepper.X, c.Stepper.Y, c.Stepper.Z} {
		if axis.StepsPerMM <= 0 {
			return fmt.Errorf("config: stepper.*.steps-per-mm must be > 0 (key=%q)", axis.Key)
		}
		if axis.Key == "" {
			return fmt.Errorf("config: stepper.*.key must be set")
		}
	}
	return nil
}

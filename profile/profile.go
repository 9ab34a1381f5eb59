// Package profile holds the immutable, read-only-after-load speed profile
// table and path/position data every task draws from (spec.md §3, "Path and
// SpeedProfile are loaded once and read-only afterwards").
package profile

import (
	"fmt"

	"github.com/agrigantry/gantry/axis"
	"github.com/agrigantry/gantry/pulse"
)

// Phase selects which task's profile applies.
type Phase int

const (
	FaultManual Phase = iota
	Homing
	Spraying
	Tending
	Cleaning
)

// Band is a speed tier within a phase.
type Band int

const (
	Slow Band = iota
	Normal
	Fast
)

// Table is the phase x band x axis -> SpeedProfile lookup, populated once
// at config load time (spec.md §3 SpeedProfile, §6 mechanisms.<phase>.speed).
type Table struct {
	entries map[Phase]map[Band]map[axis.Name]pulse.SpeedProfile
}

// NewTable builds an empty, mutable-during-construction Table. Callers call
// Set for every (phase,band,axis) combination their configuration defines,
// then treat the Table as read-only.
func NewTable() *Table {
	return &Table{entries: make(map[Phase]map[Band]map[axis.Name]pulse.SpeedProfile)}
}

// Set installs one entry, validating the spec.md §3 invariant that rpm,
// acceleration and deceleration are all > 0.
func (t *Table) Set(phase Phase, band Band, ax axis.Name, sp pulse.SpeedProfile) error {
	if sp.RPM <= 0 || sp.Acceleration <= 0 || sp.Deceleration <= 0 {
		return fmt.Errorf("profile: invalid speed profile for phase=%v band=%v axis=%v: rpm=%v accel=%v decel=%v", phase, band, ax, sp.RPM, sp.Acceleration, sp.Deceleration)
	}
	byBand, ok := t.entries[phase]
	if !ok {
		byBand = make(map[Band]map[axis.Name]pulse.SpeedProfile)
		t.entries[phase] = byBand
	}
	byAxis, ok := byBand[band]
	if !ok {
		byAxis = make(map[axis.Name]pulse.SpeedProfile)
		byBand[band] = byAxis
	}
	byAxis[ax] = sp
	return nil
}

// Get looks up a speed profile; ok is false if this combination was never
// configured.
func (t *Table) Get(phase Phase, band Band, ax axis.Name) (pulse.SpeedProfile, bool) {
	sp, ok := t.entries[phase][band][ax]
	return sp, ok
}

// Coordinate is an (x,y,z) position or delta in millimetres (spec.md §3).
type Coordinate struct {
	X, Y, Z float64
}

// Add returns the element-wise sum of two coordinates.
func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// Path is an ordered sequence of Coordinate deltas (spec.md §3).
type Path []Coordinate

// CleaningStation is one stop in the cleaning sequence (spec.md §3).
type CleaningStation struct {
	X, Y      float64
	DwellSecs float64
	Sonicator bool
}

// Unit is the unit a Movement command's deltas are expressed in.
type Unit int

const (
	MM Unit = iota
	CM
)

// ToMM converts a value in this unit to millimetres.
func (u Unit) ToMM(v float64) float64 {
	if u == CM {
		return v * 10
	}
	return v
}

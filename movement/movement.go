// Package movement translates high-level motion commands into parallel
// per-axis moves (spec.md §4.3): converting mm/cm deltas to steps,
// dispatching a worker per axis, and sequencing homing, path-following, and
// absolute positioning.
package movement

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/agrigantry/gantry/axis"
	"github.com/agrigantry/gantry/profile"
	"github.com/agrigantry/gantry/pulse"
)

// ErrBusy is returned when a command is issued while another is already in
// flight; spec.md §4.3 requires re-entrant calls to fail fast.
var ErrBusy = errors.New("movement: a command is already in flight")

// AxisOrder configures the order axes are sequenced in homing: spec.md §4.2
// typically retracts Z first, then X and Y together, then Z finger-down.
type AxisOrder struct {
	First  []axis.Name // sequenced stage, e.g. [Z]
	Second []axis.Name // parallel stage, e.g. [X, Y]
	Third  []axis.Name // final sequenced stage, e.g. [Z] again (finger)
}

// Config bundles everything Coordinator needs beyond the three axes.
type Config struct {
	Order            AxisOrder
	Profiles         *profile.Table
	SprayingPosition profile.Coordinate
	TendingPosition  profile.Coordinate
	SprayingPath     profile.Path
	TendingEdgePath  profile.Path
	TendingZigzag    profile.Path
	CleaningStations []profile.CleaningStation
}

// Coordinator owns the three axes and the worker pool that dispatches their
// moves, per spec.md §4.3.
type Coordinator struct {
	axes  map[axis.Name]*axis.Axis
	pool  *workerPool
	cfg   Config
	busy  int32
	phase profile.Phase
	band  profile.Band

	position profile.Coordinate

	progress atomic.Uint64 // completed-steps sum, monotonically increasing within one Move
	total    atomic.Uint64
}

// New constructs a Coordinator over exactly three axes (X, Y, Z), starting
// a 3-worker pool — "dispatches per-axis moves to a worker pool with >= 3
// workers" (spec.md §4.3); this implementation uses exactly 3, one per
// axis, which both satisfies the lower bound and removes any need for
// axis-to-worker scheduling.
func New(axes map[axis.Name]*axis.Axis, cfg Config) *Coordinator {
	return &Coordinator{
		axes:  axes,
		pool:  newWorkerPool(3),
		cfg:   cfg,
		phase: profile.Spraying,
		band:  profile.Normal,
	}
}

// Close joins the worker pool. Called on shutdown (spec.md §4.3 "owned and
// joined by Movement on destruction").
func (c *Coordinator) Close() { c.pool.Close() }

// SetPhaseBand selects which SpeedProfile entries subsequent moves use.
func (c *Coordinator) SetPhaseBand(phase profile.Phase, band profile.Band) {
	c.phase = phase
	c.band = band
}

// Progress returns a monotonically increasing fraction in [0,1] of the
// current in-flight Move's completed-steps sum, per spec.md §4.3.
func (c *Coordinator) Progress() float64 {
	total := c.total.Load()
	if total == 0 {
		return 1
	}
	done := c.progress.Load()
	if done > total {
		done = total
	}
	return float64(done) / float64(total)
}

func (c *Coordinator) axisIndex(name axis.Name) int {
	switch name {
	case axis.X:
		return 0
	case axis.Y:
		return 1
	default:
		return 2
	}
}

// Move converts (dx,dy,dz) in the given unit to steps and dispatches one
// job per non-zero axis to the worker pool, returning once all dispatched
// axes report done. Re-entrant calls fail fast with ErrBusy, per spec.md
// §4.3's "only one high-level command is in flight at a time".
func (c *Coordinator) Move(ctx context.Context, dx, dy, dz float64, unit profile.Unit, faultCheck func() bool) error {
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) {
		return ErrBusy
	}
	defer atomic.StoreInt32(&c.busy, 0)

	deltasMM := map[axis.Name]float64{
		axis.X: unit.ToMM(dx),
		axis.Y: unit.ToMM(dy),
		axis.Z: unit.ToMM(dz),
	}

	c.progress.Store(0)
	var totalSteps uint64
	type job struct {
		name  axis.Name
		steps int64
	}
	var jobs []job
	for _, name := range []axis.Name{axis.X, axis.Y, axis.Z} {
		mm := deltasMM[name]
		if mm == 0 {
			continue
		}
		ax, ok := c.axes[name]
		if !ok {
			return fmt.Errorf("movement: no axis configured for %v", name)
		}
		steps := ax.MMToSteps(mm)
		n := steps
		if n < 0 {
			n = -n
		}
		totalSteps += uint64(n)
		jobs = append(jobs, job{name: name, steps: steps})
	}
	c.total.Store(totalSteps)

	if len(jobs) == 0 {
		return nil
	}

	results := make([]*jobResult, 0, len(jobs))
	for _, j := range jobs {
		j := j
		ax := c.axes[j.name]
		sp, ok := c.cfg.Profiles.Get(c.phase, c.band, j.name)
		if !ok {
			return fmt.Errorf("movement: no speed profile for phase=%v band=%v axis=%v", c.phase, c.band, j.name)
		}
		res, err := c.pool.Submit(ctx, c.axisIndex(j.name), func(ctx context.Context) error {
			done, err := ax.MoveSteps(ctx, j.steps, pulse.Linear, sp, 0, faultCheck)
			c.progress.Add(uint64(done))
			return err
		})
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	var firstErr error
	for _, res := range results {
		if err := res.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	c.position = c.position.Add(profile.Coordinate{X: deltasMM[axis.X], Y: deltasMM[axis.Y], Z: deltasMM[axis.Z]})
	return nil
}

// Position returns the coordinate accumulated across completed moves.
func (c *Coordinator) Position() profile.Coordinate { return c.position }

// Homing sequences axes per cfg.Order: First stage axes run (each awaiting
// the previous), then Second stage axes home in parallel, then Third stage
// axes run, per spec.md §4.2/§4.3.
func (c *Coordinator) Homing(ctx context.Context, faultCheck func() bool) error {
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) {
		return ErrBusy
	}
	defer atomic.StoreInt32(&c.busy, 0)

	runStage := func(names []axis.Name, sequential bool) error {
		if len(names) == 0 {
			return nil
		}
		results := make([]*jobResult, 0, len(names))
		for _, name := range names {
			name := name
			ax, ok := c.axes[name]
			if !ok {
				return fmt.Errorf("movement: no axis configured for %v", name)
			}
			res, err := c.pool.Submit(ctx, c.axisIndex(name), func(ctx context.Context) error {
				return ax.Home(ctx, faultCheck)
			})
			if err != nil {
				return err
			}
			if sequential {
				if err := res.Wait(ctx); err != nil {
					return err
				}
				continue
			}
			results = append(results, res)
		}
		for _, res := range results {
			if err := res.Wait(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	if err := runStage(c.cfg.Order.First, true); err != nil {
		return err
	}
	if faultCheck != nil && faultCheck() {
		return nil
	}
	if err := runStage(c.cfg.Order.Second, false); err != nil {
		return err
	}
	if faultCheck != nil && faultCheck() {
		return nil
	}
	if err := runStage(c.cfg.Order.Third, true); err != nil {
		return err
	}

	c.position = profile.Coordinate{}
	return nil
}

// followPath issues one Move per waypoint delta, in order, stopping early
// if faultCheck reports true between waypoints (cooperative cancellation).
func (c *Coordinator) followPath(ctx context.Context, path profile.Path, faultCheck func() bool) error {
	for _, wp := range path {
		if faultCheck != nil && faultCheck() {
			return nil
		}
		if err := c.Move(ctx, wp.X, wp.Y, wp.Z, profile.MM, faultCheck); err != nil {
			return err
		}
	}
	return nil
}

// FollowSprayingPath iterates the configured spraying path.
func (c *Coordinator) FollowSprayingPath(ctx context.Context, faultCheck func() bool) error {
	return c.followPath(ctx, c.cfg.SprayingPath, faultCheck)
}

// FollowTendingPathEdge iterates the configured tending edge path.
func (c *Coordinator) FollowTendingPathEdge(ctx context.Context, faultCheck func() bool) error {
	return c.followPath(ctx, c.cfg.TendingEdgePath, faultCheck)
}

// FollowTendingPathZigzag iterates the configured tending zigzag path.
func (c *Coordinator) FollowTendingPathZigzag(ctx context.Context, faultCheck func() bool) error {
	return c.followPath(ctx, c.cfg.TendingZigzag, faultCheck)
}

// MoveToSprayingPosition makes an absolute move to the configured spraying
// position.
func (c *Coordinator) MoveToSprayingPosition(ctx context.Context, faultCheck func() bool) error {
	target := c.cfg.SprayingPosition
	delta := profile.Coordinate{X: target.X - c.position.X, Y: target.Y - c.position.Y, Z: target.Z - c.position.Z}
	return c.Move(ctx, delta.X, delta.Y, delta.Z, profile.MM, faultCheck)
}

// MoveToTendingPosition makes an absolute move to the configured tending
// position.
func (c *Coordinator) MoveToTendingPosition(ctx context.Context, faultCheck func() bool) error {
	target := c.cfg.TendingPosition
	delta := profile.Coordinate{X: target.X - c.position.X, Y: target.Y - c.position.Y, Z: target.Z - c.position.Z}
	return c.Move(ctx, delta.X, delta.Y, delta.Z, profile.MM, faultCheck)
}

// stopAxis forwards Stop to one axis, returning pending steps.
func (c *Coordinator) stopAxis(name axis.Name) uint32 {
	ax, ok := c.axes[name]
	if !ok {
		return 0
	}
	return ax.Stop()
}

// StopX forwards to the Pulse Engine for X, returning pending steps.
func (c *Coordinator) StopX() uint32 { return c.stopAxis(axis.X) }

// StopY forwards to the Pulse Engine for Y, returning pending steps.
func (c *Coordinator) StopY() uint32 { return c.stopAxis(axis.Y) }

// StopZ forwards to the Pulse Engine for Z, returning pending steps.
func (c *Coordinator) StopZ() uint32 { return c.stopAxis(axis.Z) }

// Stop stops all three axes, returning the sum of pending steps.
func (c *Coordinator) Stop() uint32 {
	return c.StopX() + c.StopY() + c.StopZ()
}

// DisableMotors disables all three axes, called on fault and on shutdown
// per spec.md §4.3.
func (c *Coordinator) DisableMotors(ctx context.Context) error {
	var firstErr error
	for _, name := range []axis.Name{axis.X, axis.Y, axis.Z} {
		ax, ok := c.axes[name]
		if !ok {
			continue
		}
		if err := ax.Disable(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CleaningStations exposes the configured cleaning stations for the
// cleaning::job action to iterate.
func (c *Coordinator) CleaningStations() []profile.CleaningStation {
	return c.cfg.CleaningStations
}

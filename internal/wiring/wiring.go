// Package wiring shows how a real main package would assemble every
// component in this module into a running process. spec.md §1 places the
// process entry point itself out of scope, so this package stops at
// constructing a *Context and registering the transition table; starting
// goroutines and blocking until shutdown is the caller's job.
package wiring

import (
	"context"
	"errors"
	"time"

	"github.com/agrigantry/gantry/action"
	"github.com/agrigantry/gantry/axis"
	"github.com/agrigantry/gantry/config"
	"github.com/agrigantry/gantry/fsm"
	"github.com/agrigantry/gantry/guard"
	"github.com/agrigantry/gantry/listener"
	"github.com/agrigantry/gantry/logging"
	"github.com/agrigantry/gantry/movement"
	"github.com/agrigantry/gantry/profile"
	"github.com/agrigantry/gantry/pulse"
	"github.com/agrigantry/gantry/state"
)

// Context bundles every long-lived object a running process needs, built
// once at startup and passed down instead of relying on package-level
// globals.
type Context struct {
	Config   *config.Config
	State    *state.Shared
	Movement *movement.Coordinator
	Machine  *fsm.Machine
	Log      *logging.Logger

	FaultListener              *listener.Fault
	RestartListener            *listener.RestartFromFault
	WaterRefillListener        *listener.WaterRefill
	DisinfectantRefillListener *listener.DisinfectantRefill
	RefillScheduler            *listener.RefillScheduler
}

// speedProfileFromTOML converts one config.SpeedBand into a
// pulse.SpeedProfile.
func speedProfileFromTOML(sb config.SpeedBand) pulse.SpeedProfile {
	return pulse.SpeedProfile{RPM: sb.RPM, Acceleration: sb.Acceleration, Deceleration: sb.Deceleration}
}

// PathFromTOML converts a config.Path into a profile.Path, shared by
// whatever assembles movement.Config.SprayingPath /
// TendingEdgePath / TendingZigzag from the loaded configuration.
func PathFromTOML(p config.Path) profile.Path {
	out := make(profile.Path, len(p))
	for i, c := range p {
		out[i] = profile.Coordinate{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out
}

func buildProfileTable(cfg *config.Config) *profile.Table {
	t := profile.NewTable()
	install := func(phase profile.Phase, st config.SpeedTable) {
		bands := map[profile.Band]config.AxisSpeedTable{
			profile.Slow:   st.Slow,
			profile.Normal: st.Normal,
			profile.Fast:   st.Fast,
		}
		for band, axisTable := range bands {
			_ = t.Set(phase, band, axis.X, speedProfileFromTOML(axisTable.X))
			_ = t.Set(phase, band, axis.Y, speedProfileFromTOML(axisTable.Y))
			_ = t.Set(phase, band, axis.Z, speedProfileFromTOML(axisTable.Z))
		}
	}
	install(profile.Spraying, cfg.Mechanisms.Spraying.Speed)
	install(profile.Tending, cfg.Mechanisms.Tending.Speed)
	install(profile.Cleaning, cfg.Mechanisms.Cleaning.Speed)
	install(profile.FaultManual, cfg.Mechanisms.Fault.Speed)
	install(profile.Homing, cfg.Mechanisms.Homing.Speed)
	return t
}

// New constructs a Context from an already-loaded Config. axes and
// movementCfg are assembled by the caller from real or fake device
// bindings; wiring itself never touches a device package type directly,
// keeping it hardware-agnostic.
func New(cfg *config.Config, axes map[axis.Name]*axis.Axis, movementCfg movement.Config) *Context {
	sh := state.New()
	movementCfg.Profiles = buildProfileTable(cfg)
	coord := movement.New(axes, movementCfg)
	machine := fsm.New()
	log := logging.New("gantry", logging.WithDebug(cfg.General.Debug))

	deps := action.Deps{State: sh, Movement: coord}
	registerTransitions(machine, sh, deps)

	ctx := &Context{
		Config:   cfg,
		State:    sh,
		Movement: coord,
		Machine:  machine,
		Log:      log,
	}

	ctx.FaultListener = listener.NewFault(sh, machine)
	ctx.RestartListener = listener.NewRestartFromFault(sh, machine, guard.Reset)
	ctx.WaterRefillListener = listener.NewWaterRefill(sh, func(snap state.Snapshot) {
		period := time.Duration(cfg.Refilling.Water.PeriodHours * float64(time.Hour))
		_ = action.ExchangeWaterRefill(context.Background(), deps, period)
	})
	ctx.DisinfectantRefillListener = listener.NewDisinfectantRefill(sh, func(snap state.Snapshot) {
		period := time.Duration(cfg.Refilling.Disinfectant.PeriodHours * float64(time.Hour))
		_ = action.ExchangeDisinfectantRefill(context.Background(), deps, period)
	})
	ctx.RefillScheduler = listener.NewRefillScheduler(sh, time.Minute)

	return ctx
}

// registerTransitions installs the hierarchical transition table from
// spec.md §4.5 onto machine.
func registerTransitions(machine *fsm.Machine, sh *state.Shared, deps action.Deps) {
	// An action cut short by a fault checkpoint is not an FSM error: the
	// posted fault::trigger event moves the machine on.
	wrap := func(fn func(ctx context.Context, d action.Deps) error) func(context.Context) error {
		return func(c context.Context) error {
			if err := fn(c, deps); !errors.Is(err, action.ErrAborted) {
				return err
			}
			return nil
		}
	}

	machine.On(fsm.StateInitial, fsm.EventStart, fsm.Transition{
		To:     fsm.StateRunningNoTask,
		Action: wrap(action.Start),
	})

	machine.On(fsm.StateRunningNoTask, fsm.EventSprayingJob, fsm.Transition{
		To:     fsm.StateRunningSpraying,
		Guard:  func() bool { return guard.SprayingReady(sh.Snapshot()) },
		Action: wrap(action.SprayingJob),
	})
	machine.On(fsm.StateRunningSpraying, fsm.EventSprayingComplete, fsm.Transition{
		To:     fsm.StateRunningNoTask,
		Action: wrap(action.SprayingComplete),
	})

	machine.On(fsm.StateRunningNoTask, fsm.EventTendingJob, fsm.Transition{
		To:     fsm.StateRunningTending,
		Guard:  func() bool { return guard.TendingReady(sh.Snapshot()) },
		Action: wrap(action.TendingJob),
	})
	machine.On(fsm.StateRunningTending, fsm.EventTendingComplete, fsm.Transition{
		To:     fsm.StateRunningNoTask,
		Action: wrap(action.TendingComplete),
	})

	machine.On(fsm.StateRunningNoTask, fsm.EventCleaningJob, fsm.Transition{
		To:     fsm.StateRunningCleaning,
		Guard:  func() bool { return guard.CleaningReady(sh.Snapshot()) },
		Action: wrap(action.CleaningJob),
	})
	machine.On(fsm.StateRunningCleaning, fsm.EventCleaningComplete, fsm.Transition{
		To:     fsm.StateRunningNoTask,
		Action: wrap(action.CleaningComplete),
	})

	for _, from := range []fsm.State{
		fsm.StateRunningNoTask, fsm.StateRunningSpraying,
		fsm.StateRunningTending, fsm.StateRunningCleaning,
	} {
		machine.On(from, fsm.EventFaultTrigger, fsm.Transition{
			To:     fsm.StateFault,
			Action: func(c context.Context) error { return action.Fault(c, deps, false) },
		})
		machine.On(from, fsm.EventFaultManual, fsm.Transition{
			To:     fsm.StateFault,
			Action: func(c context.Context) error { return action.Fault(c, deps, true) },
		})
	}

	machine.On(fsm.StateFault, fsm.EventFaultRestart, fsm.Transition{
		To:     fsm.StateRunningNoTask,
		Guard:  func() bool { return guard.Restart(sh.Snapshot()) },
		Action: wrap(action.Restart),
	})

	machine.On(fsm.StateRunningNoTask, fsm.EventStop, fsm.Transition{
		To:     fsm.StateTerminated,
		Action: wrap(action.Stop),
	})
}

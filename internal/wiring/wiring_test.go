package wiring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrigantry/gantry/axis"
	"github.com/agrigantry/gantry/config"
	"github.com/agrigantry/gantry/fsm"
	"github.com/agrigantry/gantry/movement"
	"github.com/agrigantry/gantry/profile"
	"github.com/agrigantry/gantry/pulse"
)

type fakeStepper struct{}

func (fakeStepper) Enable(ctx context.Context) error                  { return nil }
func (fakeStepper) Disable(ctx context.Context) error                 { return nil }
func (fakeStepper) Step(ctx context.Context) error                    { return nil }
func (fakeStepper) SetDirection(ctx context.Context, forward bool) error { return nil }

type fakeLimit struct{}

func (fakeLimit) ReadBool(ctx context.Context) (bool, error) { return false, nil }

func testConfig() *config.Config {
	var cfg config.Config
	cfg.General.Name = "test"
	cfg.General.Timeout = 10
	sp := config.SpeedBand{RPM: 60, Acceleration: 100, Deceleration: 100}
	axisTable := config.AxisSpeedTable{X: sp, Y: sp, Z: sp}
	speed := config.SpeedTable{Slow: axisTable, Normal: axisTable, Fast: axisTable}
	cfg.Mechanisms.Spraying.Speed = speed
	cfg.Mechanisms.Tending.Speed = speed
	cfg.Mechanisms.Cleaning.Speed = speed
	cfg.Mechanisms.Fault.Speed = speed
	cfg.Mechanisms.Homing.Speed = speed
	cfg.Stepper.X = config.StepperAxis{StepsPerMM: 10, Key: "x"}
	cfg.Stepper.Y = config.StepperAxis{StepsPerMM: 10, Key: "y"}
	cfg.Stepper.Z = config.StepperAxis{StepsPerMM: 10, Key: "z"}
	return &cfg
}

func testAxes() map[axis.Name]*axis.Axis {
	homing := axis.HomingConfig{
		TravelEnvelopeSteps: 10,
		BackoffSteps:        2,
		Profile:             pulse.SpeedProfile{RPM: 60, Acceleration: 100, Deceleration: 100},
		DebounceProfile:     pulse.SpeedProfile{RPM: 60, Acceleration: 100, Deceleration: 100},
	}
	axes := map[axis.Name]*axis.Axis{}
	for _, name := range []axis.Name{axis.X, axis.Y, axis.Z} {
		axes[name] = axis.New(name, 10, pulse.Params{MotorSteps: 200, Microsteps: 1}, fakeStepper{}, fakeLimit{}, homing)
	}
	return axes
}

func TestNewWiresMachineAndCanStartStop(t *testing.T) {
	cfg := testConfig()
	axes := testAxes()
	movementCfg := movement.Config{
		SprayingPosition: profile.Coordinate{X: 1},
		TendingPosition:  profile.Coordinate{X: 1},
	}

	ctx := New(cfg, axes, movementCfg)
	defer ctx.Movement.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctx.Machine.Run(runCtx) }()

	ctx.Machine.Post(fsm.Event{Kind: fsm.EventStart})
	require.Eventually(t, func() bool { return ctx.Machine.Current() == fsm.StateRunningNoTask }, time.Second, time.Millisecond)
	require.True(t, ctx.State.Snapshot().Running)

	ctx.Machine.Post(fsm.Event{Kind: fsm.EventStop})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("machine did not terminate")
	}
}

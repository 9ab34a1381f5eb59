package listener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrigantry/gantry/fsm"
	"github.com/agrigantry/gantry/state"
)

func TestFaultListenerPostsOnTransition(t *testing.T) {
	sh := state.New()
	m := fsm.New()
	m.On(fsm.StateInitial, fsm.EventStart, fsm.Transition{To: fsm.StateRunningNoTask})
	m.On(fsm.StateRunningNoTask, fsm.EventFaultTrigger, fsm.Transition{To: fsm.StateFault})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	m.Post(fsm.Event{Kind: fsm.EventStart})
	require.Eventually(t, func() bool { return m.Current() == fsm.StateRunningNoTask }, time.Second, time.Millisecond)

	f := NewFault(sh, m)
	f.Start(ctx)
	defer f.Stop()

	sh.SetFault(true, false)

	require.Eventually(t, func() bool { return m.Current() == fsm.StateFault }, time.Second, time.Millisecond)
}

func TestRefillSchedulerFlagsDueRefill(t *testing.T) {
	sh := state.New()
	sh.SetRefillRunning(state.Water, true, time.Now(), time.Hour)
	sh.SetRefillRunning(state.Water, false, time.Now().Add(-2*time.Hour), time.Hour) // next already due

	sched := NewRefillScheduler(sh, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	require.Eventually(t, func() bool { return sh.Snapshot().WaterRefillingRequested }, time.Second, 5*time.Millisecond)
}

func TestWaterRefillListenerFiresOnRequest(t *testing.T) {
	sh := state.New()
	fired := make(chan struct{}, 1)
	l := NewWaterRefill(sh, func(s state.Snapshot) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)
	defer l.Stop()

	sh.SetRefillRequested(state.Water, true)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("water refill listener did not fire")
	}
}

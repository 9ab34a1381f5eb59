package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetFaultCascadesRunningAndManual(t *testing.T) {
	sh := New()
	sh.SetManualMode(true)
	require.True(t, sh.SetTaskRunning(Spraying, true))

	sh.SetFault(true, false)
	snap := sh.Snapshot()
	require.True(t, snap.Fault)
	require.False(t, snap.SprayingRunning)
	require.False(t, snap.TendingRunning)
	require.False(t, snap.CleaningRunning)
	require.False(t, snap.ManualMode)
}

func TestSetFaultCanPreserveManual(t *testing.T) {
	sh := New()
	sh.SetManualMode(true)
	sh.SetFault(true, true)
	require.True(t, sh.Snapshot().ManualMode)
}

func TestSetTaskRunningRequiresNoFault(t *testing.T) {
	sh := New()
	sh.SetFault(true, false)
	applied := sh.SetTaskRunning(Tending, true)
	require.False(t, applied)
	require.False(t, sh.Snapshot().TendingRunning)
}

func TestWhileFaultNoRunningFlagEverBecomesTrue(t *testing.T) {
	sh := New()
	sh.SetFault(true, false)
	for _, kind := range []TaskKind{Spraying, Tending, Cleaning} {
		sh.SetTaskRunning(kind, true)
	}
	snap := sh.Snapshot()
	require.False(t, snap.AnyTaskRunning())
}

func TestResetUIKeepsRunningAndRefillTimestamps(t *testing.T) {
	sh := New()
	now := time.Now()
	sh.SetRefillRunning(Water, true, now, time.Hour)
	sh.SetRefillRunning(Water, false, now, time.Hour)
	sh.SetManualMode(true)
	sh.SetTaskReady(Spraying, true)

	sh.ResetUI()
	snap := sh.Snapshot()
	require.True(t, snap.Running)
	require.Equal(t, now, snap.WaterRefillLastExecuted)
	require.Equal(t, now.Add(time.Hour), snap.WaterRefillNextExecuted)
	require.False(t, snap.ManualMode)
	require.False(t, snap.SprayingReady)
}

func TestNoTaskEntryTransitionInvariant(t *testing.T) {
	sh := New()
	sh.SetTaskRunning(Spraying, true)
	sh.SetTaskComplete(Spraying, true)
	sh.SetFault(false, false)

	sh.NoTaskEntry()
	for _, kind := range []TaskKind{Spraying, Tending, Cleaning} {
		sh.SetTaskReady(kind, true)
	}

	snap := sh.Snapshot()
	require.False(t, snap.AnyTaskRunning())
	require.True(t, snap.SprayingReady)
	require.True(t, snap.TendingReady)
	require.True(t, snap.CleaningReady)
}

func TestWaitBroadcastVisibility(t *testing.T) {
	sh := New()
	var wg sync.WaitGroup
	wg.Add(1)

	done := make(chan struct{})
	go func() {
		defer wg.Done()
		sh.Wait(func(s Snapshot) bool { return s.Fault })
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter block
	sh.SetFault(true, false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by broadcast")
	}
	wg.Wait()
}

package guard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrigantry/gantry/state"
)

func TestMachineReady(t *testing.T) {
	require.True(t, MachineReady(state.Snapshot{Running: true}))
	require.False(t, MachineReady(state.Snapshot{Running: true, Fault: true}))
	require.False(t, MachineReady(state.Snapshot{Running: false}))
}

func TestResetRequiresFaultWithoutManual(t *testing.T) {
	require.True(t, Reset(state.Snapshot{Fault: true}))
	require.False(t, Reset(state.Snapshot{Fault: true, ManualMode: true}))
	require.False(t, Reset(state.Snapshot{Fault: false}))
}

func TestTaskReadyGuardsExcludeFaultAndConcurrentTasks(t *testing.T) {
	require.True(t, SprayingReady(state.Snapshot{SprayingReady: true}))
	require.False(t, SprayingReady(state.Snapshot{SprayingReady: true, Fault: true}))
	require.False(t, SprayingReady(state.Snapshot{SprayingReady: true, TendingRunning: true}))
}

func TestClassifyHeight(t *testing.T) {
	require.Equal(t, HeightSprayingTending, ClassifyHeight(100, 500, 1500))
	require.Equal(t, HeightCleaning, ClassifyHeight(2000, 500, 1500))
	require.Equal(t, HeightUnknown, ClassifyHeight(900, 500, 1500))
}

func TestRefillDue(t *testing.T) {
	require.True(t, RefillDue(true, false))
	require.False(t, RefillDue(true, true))
	require.False(t, RefillDue(false, false))
}

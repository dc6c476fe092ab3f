package supervisor

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack-tools/stackd/pkg/processfile"
)

func newTestState(t *testing.T) (*State, *processfile.Manager) {
	t.Helper()
	files := processfile.NewManager(processfile.Config{BaseDirectory: t.TempDir()}, testLogger)
	return NewState(files, 2*time.Second, testLogger), files
}

func TestState_RecordAndProbe(t *testing.T) {
	state, files := newTestState(t)

	// Our own pid is certainly alive.
	require.NoError(t, state.RecordPID("app-server", os.Getpid()))
	assert.True(t, state.IsAlive("app-server"))

	pid, ok := state.Pid("app-server")
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)

	// The record is also durable on disk.
	stored, err := files.ReadPIDFile("app-server")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), stored)
}

func TestState_StaleRecordCleared(t *testing.T) {
	state, files := newTestState(t)

	// A pid far beyond any live process on a test machine.
	require.NoError(t, state.RecordPID("cache", 4194000))
	assert.False(t, state.IsAlive("cache"))

	// The stale pid file was removed by the failed probe.
	_, ok := state.Pid("cache")
	assert.False(t, ok)
	_, err := files.ReadPIDFile("cache")
	assert.Error(t, err)
}

func TestState_AdoptsPidFromFile(t *testing.T) {
	files := processfile.NewManager(processfile.Config{BaseDirectory: t.TempDir()}, testLogger)
	require.NoError(t, files.WritePIDFile("task-worker", os.Getpid()))

	// A fresh State with an empty pid map finds the predecessor's record.
	state := NewState(files, 2*time.Second, testLogger)
	assert.True(t, state.IsAlive("task-worker"))

	pid, ok := state.Pid("task-worker")
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestState_StopWithoutRecordIsNil(t *testing.T) {
	state, _ := newTestState(t)
	assert.NoError(t, state.Stop("reverse-proxy"))
}

func TestState_StopDeadProcessClearsRecord(t *testing.T) {
	state, _ := newTestState(t)

	require.NoError(t, state.RecordPID("cache", 4194000))
	require.NoError(t, state.Stop("cache"))

	_, ok := state.Pid("cache")
	assert.False(t, ok)
}

func TestState_StopRunningProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal-based stop is unix only")
	}
	state, _ := newTestState(t)

	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()
	go cmd.Wait()

	require.NoError(t, state.RecordPID("app-server", cmd.Process.Pid))
	require.True(t, state.IsAlive("app-server"))

	require.NoError(t, state.Stop("app-server"))
	assert.False(t, state.IsAlive("app-server"))
}

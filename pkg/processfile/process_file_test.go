package processfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(Config{BaseDirectory: t.TempDir()}, logging.NewLogger("", logging.LogFuncs{}))
}

func TestNewManager_Defaults(t *testing.T) {
	manager := NewManager(Config{}, logging.NewLogger("", logging.LogFuncs{}))

	assert.Contains(t, manager.Directory(), DefaultAppName)
	assert.Equal(t, filepath.Join(manager.Directory(), "cache.pid"), manager.PIDFilePath("cache"))
}

func TestPIDFilePath(t *testing.T) {
	manager := newTestManager(t)

	path := manager.PIDFilePath("reverse-proxy")
	assert.Equal(t, filepath.Join(manager.Directory(), "reverse-proxy.pid"), path)
}

func TestWriteAndReadPIDFile(t *testing.T) {
	manager := newTestManager(t)

	require.NoError(t, manager.WritePIDFile("app-server", 12345))

	pid, err := manager.ReadPIDFile("app-server")
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestReadPIDFile_Missing(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.ReadPIDFile("task-worker")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestReadPIDFile_Garbage(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, os.WriteFile(manager.PIDFilePath("cache"), []byte("not-a-pid\n"), 0644))

	_, err := manager.ReadPIDFile("cache")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestReadPIDFile_Empty(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, os.WriteFile(manager.PIDFilePath("cache"), []byte("  \n"), 0644))

	_, err := manager.ReadPIDFile("cache")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRemovePIDFile(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.WritePIDFile("task-scheduler", 99))

	require.NoError(t, manager.RemovePIDFile("task-scheduler"))
	_, err := manager.ReadPIDFile("task-scheduler")
	assert.True(t, errors.IsNotFoundError(err))

	// Removing again is not an error.
	assert.NoError(t, manager.RemovePIDFile("task-scheduler"))
}

func TestWritePIDFile_CreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "run")
	manager := NewManager(Config{BaseDirectory: base}, logging.NewLogger("", logging.LogFuncs{}))

	require.NoError(t, manager.WritePIDFile("filesystem-watcher", 7))

	pid, err := manager.ReadPIDFile("filesystem-watcher")
	require.NoError(t, err)
	assert.Equal(t, 7, pid)
}

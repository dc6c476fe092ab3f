package supervisor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/errors"
)

func newTestSupervisor(t *testing.T, cfg *config.Config) *Supervisor {
	t.Helper()
	cfg.Supervisor.RunDirectory = t.TempDir()
	return New(config.NewStore(cfg), "", testLogger)
}

func TestServices_FullCatalogInOrder(t *testing.T) {
	sup := newTestSupervisor(t, &config.Config{})

	infos := sup.Services()
	require.Len(t, infos, len(StartOrder))
	for i, info := range infos {
		assert.Equal(t, StartOrder[i], info.Name)
		assert.False(t, info.Running)
	}

	byName := make(map[string]ServiceInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.True(t, byName[ServiceCache].Enabled)
	assert.True(t, byName[ServiceAppServer].Enabled)
	assert.False(t, byName[ServiceTaskScheduler].Enabled)
	assert.False(t, byName[ServiceFilesystemWatcher].Enabled)
}

func TestServices_ReflectsFeatureFlags(t *testing.T) {
	cfg := &config.Config{Features: config.FeatureFlags{ScheduledCleanup: true, FilesystemWatch: true}}
	cfg.Cache.ExternalEndpoint = "redis.internal:6379"
	sup := newTestSupervisor(t, cfg)

	byName := make(map[string]ServiceInfo)
	for _, info := range sup.Services() {
		byName[info.Name] = info
	}
	assert.False(t, byName[ServiceCache].Enabled, "external endpoint disables internal cache")
	assert.True(t, byName[ServiceTaskScheduler].Enabled)
	assert.True(t, byName[ServiceFilesystemWatcher].Enabled)
}

func TestService_ReportsRunningState(t *testing.T) {
	sup := newTestSupervisor(t, &config.Config{})
	require.NoError(t, sup.handle.RecordPID(ServiceAppServer, os.Getpid()))

	info, ok := sup.Service(ServiceAppServer)
	require.True(t, ok)
	assert.True(t, info.Running)
	assert.Equal(t, os.Getpid(), info.Pid)
}

func TestService_UnknownName(t *testing.T) {
	sup := newTestSupervisor(t, &config.Config{})
	_, ok := sup.Service("no-such-service")
	assert.False(t, ok)
}

func TestRestartService_UnknownIsNotFound(t *testing.T) {
	sup := newTestSupervisor(t, &config.Config{})

	err := sup.RestartService("no-such-service")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRestartService_NotRunningIsNoop(t *testing.T) {
	sup := newTestSupervisor(t, &config.Config{})
	assert.NoError(t, sup.RestartService(ServiceTaskWorker))
}

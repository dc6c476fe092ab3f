package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack-tools/stackd/pkg/config"
)

func TestDefaultCatalog_DeclaredOrder(t *testing.T) {
	store := config.NewStore(&config.Config{})
	catalog := NewDefaultCatalog(store, NewSocketWaiter(0, testLogger), testLogger)

	var names []string
	for _, service := range catalog.Services() {
		names = append(names, service.Name)
	}
	assert.Equal(t, StartOrder, names)
}

func TestCatalog_Find(t *testing.T) {
	store := config.NewStore(&config.Config{})
	catalog := NewDefaultCatalog(store, NewSocketWaiter(0, testLogger), testLogger)

	service, ok := catalog.Find(ServiceReverseProxy)
	require.True(t, ok)
	assert.Equal(t, ServiceReverseProxy, service.Name)

	_, ok = catalog.Find("no-such-service")
	assert.False(t, ok)
}

func TestEnabledPredicates_Scheduler(t *testing.T) {
	counter := newStartCounter()
	catalog := testCatalog(counter)
	scheduler, ok := catalog.Find(ServiceTaskScheduler)
	require.True(t, ok)

	cfg := &config.Config{}
	assert.False(t, scheduler.Enabled(cfg), "all three flags false")

	for _, flags := range []config.FeatureFlags{
		{ScheduledRescan: true},
		{ScheduledMetadataRefresh: true},
		{ScheduledCleanup: true},
	} {
		cfg := &config.Config{Features: flags}
		assert.True(t, scheduler.Enabled(cfg), "flags: %+v", flags)
	}
}

func TestEnabledPredicates_Cache(t *testing.T) {
	counter := newStartCounter()
	catalog := testCatalog(counter)
	cache, ok := catalog.Find(ServiceCache)
	require.True(t, ok)

	assert.True(t, cache.Enabled(&config.Config{}))

	cfg := &config.Config{}
	cfg.Cache.ExternalEndpoint = "redis.internal:6379"
	assert.False(t, cache.Enabled(cfg))
}

func TestEnabledPredicates_FilesystemWatcher(t *testing.T) {
	counter := newStartCounter()
	catalog := testCatalog(counter)
	watcher, ok := catalog.Find(ServiceFilesystemWatcher)
	require.True(t, ok)

	assert.False(t, watcher.Enabled(&config.Config{}))

	cfg := &config.Config{Features: config.FeatureFlags{FilesystemWatch: true}}
	assert.True(t, watcher.Enabled(cfg))
}

func TestForEachEnabled_FiltersAndPreservesOrder(t *testing.T) {
	counter := newStartCounter()
	catalog := testCatalog(counter)

	cfg := &config.Config{Features: config.FeatureFlags{ScheduledRescan: true}}
	cfg.Cache.ExternalEndpoint = "redis.internal:6379" // cache disabled

	var visited []string
	catalog.ForEachEnabled(cfg, func(service *ManagedService) {
		visited = append(visited, service.Name)
	})

	assert.Equal(t, []string{
		ServiceAppServer,
		ServiceTaskWorker,
		ServiceTaskScheduler,
		ServiceReverseProxy,
	}, visited)
}

func TestStopOrder(t *testing.T) {
	// Consumers first, infrastructure last; proxy before the backend it
	// fronts; cache dead last.
	assert.Equal(t, []string{
		ServiceTaskWorker,
		ServiceTaskScheduler,
		ServiceFilesystemWatcher,
		ServiceReverseProxy,
		ServiceAppServer,
		ServiceCache,
	}, StopOrder)
}

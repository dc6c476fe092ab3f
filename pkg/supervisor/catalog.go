package supervisor

import (
	"context"
	"fmt"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/process"
)

// NewDefaultCatalog builds the fixed six-service catalog over the given
// configuration store. Start routines read the current snapshot at spawn
// time so reloaded commands and tunables take effect on the next start.
func NewDefaultCatalog(store *config.Store, waiter *SocketWaiter, logger logging.Logger) *Catalog {
	spawn := func(name string, execution process.ExecutionConfig, extraEnv []string) (int, error) {
		execution.Environment = append(append([]string{}, execution.Environment...), extraEnv...)
		proc, err := process.Spawn(execution, name, logger)
		if err != nil {
			return 0, err
		}
		return proc.Pid, nil
	}

	return NewCatalog(
		&ManagedService{
			Name: ServiceCache,
			Enabled: func(cfg *config.Config) bool {
				return cfg.InternalCacheEnabled()
			},
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				return spawn(ServiceCache, cfg.Cache.Exec, runtimeEnv(cfg))
			},
		},
		&ManagedService{
			Name:    ServiceAppServer,
			Enabled: func(cfg *config.Config) bool { return true },
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				return spawn(ServiceAppServer, cfg.AppServer.Exec, runtimeEnv(cfg))
			},
		},
		&ManagedService{
			Name:    ServiceTaskWorker,
			Enabled: func(cfg *config.Config) bool { return true },
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				env := append(runtimeEnv(cfg),
					fmt.Sprintf("STACKD_WORKER_CONCURRENCY=%d", cfg.TaskWorker.Concurrency))
				return spawn(ServiceTaskWorker, cfg.TaskWorker.Exec, env)
			},
		},
		&ManagedService{
			Name: ServiceTaskScheduler,
			Enabled: func(cfg *config.Config) bool {
				return cfg.SchedulerEnabled()
			},
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				return spawn(ServiceTaskScheduler, cfg.TaskScheduler, runtimeEnv(cfg))
			},
		},
		&ManagedService{
			Name: ServiceFilesystemWatcher,
			Enabled: func(cfg *config.Config) bool {
				return cfg.Features.FilesystemWatch
			},
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				return spawn(ServiceFilesystemWatcher, cfg.FilesystemWatcher, runtimeEnv(cfg))
			},
		},
		&ManagedService{
			Name:    ServiceReverseProxy,
			Enabled: func(cfg *config.Config) bool { return true },
			Start: func(ctx context.Context) (int, error) {
				cfg := store.Snapshot()
				// Soft dependency: wait for the app server socket, but
				// proceed on timeout rather than blocking forever.
				waiter.Wait(ctx, cfg.AppServer.Socket)
				return spawn(ServiceReverseProxy, cfg.ReverseProxy, runtimeEnv(cfg))
			},
		},
	)
}

// runtimeEnv is the environment every managed process receives on top of
// the supervisor's own environment.
func runtimeEnv(cfg *config.Config) []string {
	var env []string
	if cfg.Supervisor.AuthSecret != "" {
		env = append(env, "STACKD_AUTH_SECRET="+cfg.Supervisor.AuthSecret)
	}
	if cfg.Cache.ExternalEndpoint != "" {
		env = append(env, "STACKD_CACHE_ENDPOINT="+cfg.Cache.ExternalEndpoint)
	}
	return env
}

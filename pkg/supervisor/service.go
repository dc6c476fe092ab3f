package supervisor

import (
	"context"

	"github.com/stack-tools/stackd/pkg/config"
)

// Service names double as pid file keys.
const (
	ServiceCache             = "cache"
	ServiceAppServer         = "app-server"
	ServiceTaskWorker        = "task-worker"
	ServiceTaskScheduler     = "task-scheduler"
	ServiceFilesystemWatcher = "filesystem-watcher"
	ServiceReverseProxy      = "reverse-proxy"
)

// StartOrder is the catalog declaration order, which is also the watchdog
// sweep order within one tick.
var StartOrder = []string{
	ServiceCache,
	ServiceAppServer,
	ServiceTaskWorker,
	ServiceTaskScheduler,
	ServiceFilesystemWatcher,
	ServiceReverseProxy,
}

// StopOrder is the teardown order: consumers before the producers they
// depend on, and the externally-facing proxy before the backend it fronts.
// Cache goes last despite starting near-first; it has no consumers left
// once everything else is down.
var StopOrder = []string{
	ServiceTaskWorker,
	ServiceTaskScheduler,
	ServiceFilesystemWatcher,
	ServiceReverseProxy,
	ServiceAppServer,
	ServiceCache,
}

// StartFunc spawns the underlying process detached from the supervisor and
// returns its pid without blocking on the process itself.
type StartFunc func(ctx context.Context) (int, error)

// EnabledFunc decides from the current configuration snapshot whether the
// service should be running. It must be pure: evaluating it has no side
// effects, and a true-to-false transition never stops a running process.
type EnabledFunc func(cfg *config.Config) bool

// ManagedService is one supervised long-running process with its start and
// enable logic. Records are created at catalog construction and never
// removed.
type ManagedService struct {
	Name    string
	Enabled EnabledFunc
	Start   StartFunc
}

// Catalog holds the managed services in fixed declared order. Membership is
// a construction-time decision.
type Catalog struct {
	services []*ManagedService
	byName   map[string]*ManagedService
}

// NewCatalog builds a catalog preserving the declared order of services.
func NewCatalog(services ...*ManagedService) *Catalog {
	catalog := &Catalog{
		byName: make(map[string]*ManagedService, len(services)),
	}
	for _, service := range services {
		catalog.services = append(catalog.services, service)
		catalog.byName[service.Name] = service
	}
	return catalog
}

// Services returns all services in declared order.
func (c *Catalog) Services() []*ManagedService {
	return c.services
}

// Find returns the service with the given name.
func (c *Catalog) Find(name string) (*ManagedService, bool) {
	service, ok := c.byName[name]
	return service, ok
}

// ForEachEnabled visits the services whose enable predicate holds for the
// given configuration snapshot, in declared order.
func (c *Catalog) ForEachEnabled(cfg *config.Config, fn func(*ManagedService)) {
	for _, service := range c.services {
		if service.Enabled(cfg) {
			fn(service)
		}
	}
}

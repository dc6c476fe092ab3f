package supervisor

import (
	"context"
	"sync"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/logging"
)

var testLogger = logging.NewLogger("", logging.LogFuncs{})

// fakeHandle is an in-memory ProcessHandle recording stop order.
type fakeHandle struct {
	mu      sync.Mutex
	alive   map[string]bool
	pids    map[string]int
	stopped []string
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		alive: make(map[string]bool),
		pids:  make(map[string]int),
	}
}

func (f *fakeHandle) IsAlive(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[name]
}

func (f *fakeHandle) RecordPID(name string, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[name] = true
	f.pids[name] = pid
	return nil
}

func (f *fakeHandle) ClearPID(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, name)
	delete(f.pids, name)
}

func (f *fakeHandle) Pid(name string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pid, ok := f.pids[name]
	return pid, ok
}

func (f *fakeHandle) Stop(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	delete(f.alive, name)
	delete(f.pids, name)
	return nil
}

func (f *fakeHandle) stopOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.stopped...)
}

// startCounter builds a counting StartFunc handing out sequential pids.
type startCounter struct {
	mu      sync.Mutex
	counts  map[string]int
	nextPid int
}

func newStartCounter() *startCounter {
	return &startCounter{counts: make(map[string]int), nextPid: 1000}
}

func (s *startCounter) startFunc(name string) StartFunc {
	return func(ctx context.Context) (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.counts[name]++
		s.nextPid++
		return s.nextPid, nil
	}
}

func (s *startCounter) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

func (s *startCounter) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.counts {
		total += c
	}
	return total
}

// testCatalog builds the six-service catalog with counting start funcs and
// the real enable predicates.
func testCatalog(counter *startCounter) *Catalog {
	enabled := map[string]EnabledFunc{
		ServiceCache:             func(cfg *config.Config) bool { return cfg.InternalCacheEnabled() },
		ServiceAppServer:         func(cfg *config.Config) bool { return true },
		ServiceTaskWorker:        func(cfg *config.Config) bool { return true },
		ServiceTaskScheduler:     func(cfg *config.Config) bool { return cfg.SchedulerEnabled() },
		ServiceFilesystemWatcher: func(cfg *config.Config) bool { return cfg.Features.FilesystemWatch },
		ServiceReverseProxy:      func(cfg *config.Config) bool { return true },
	}

	var services []*ManagedService
	for _, name := range StartOrder {
		services = append(services, &ManagedService{
			Name:    name,
			Enabled: enabled[name],
			Start:   counter.startFunc(name),
		})
	}
	return NewCatalog(services...)
}

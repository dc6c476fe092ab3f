package supervisor

import (
	"sync"
	"time"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/process"
	"github.com/stack-tools/stackd/pkg/processfile"
	"github.com/stack-tools/stackd/pkg/processstate"
)

// ProcessHandle tracks per-service liveness. Missing records are a valid,
// reported state, never an error.
type ProcessHandle interface {
	// IsAlive reports whether the recorded process for the service
	// currently exists in the OS process table. A stale record is treated
	// as not running.
	IsAlive(name string) bool

	// RecordPID persists the service-to-pid mapping.
	RecordPID(name string, pid int) error

	// ClearPID drops the record for a service.
	ClearPID(name string)

	// Pid returns the last recorded pid, if any.
	Pid(name string) (int, bool)

	// Stop asks the recorded process to terminate and waits, bounded, for
	// it to leave the process table. Best-effort: a process that refuses
	// to die is logged and abandoned, not force-killed.
	Stop(name string) error
}

const stopPollInterval = 200 * time.Millisecond

// State is the pidfile-backed ProcessHandle. The watchdog goroutine and the
// shutdown coordinator both touch the pid map, so it is mutex-guarded.
type State struct {
	mu       sync.Mutex
	pids     map[string]int
	files    *processfile.Manager
	stopWait time.Duration
	logger   logging.Logger
}

// NewState creates the supervisor's process state over the given pid file
// manager.
func NewState(files *processfile.Manager, stopWait time.Duration, logger logging.Logger) *State {
	if stopWait <= 0 {
		stopWait = 30 * time.Second
	}
	return &State{
		pids:     make(map[string]int),
		files:    files,
		stopWait: stopWait,
		logger:   logger,
	}
}

// lookupPid returns the in-memory pid, falling back to the pid file so a
// restarted supervisor adopts processes spawned by its predecessor.
func (s *State) lookupPid(name string) (int, bool) {
	s.mu.Lock()
	if pid, ok := s.pids[name]; ok {
		s.mu.Unlock()
		return pid, true
	}
	s.mu.Unlock()

	pid, err := s.files.ReadPIDFile(name)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			s.logger.Warnf("Ignoring unreadable pid file, service: %s, error: %v", name, err)
		}
		return 0, false
	}

	s.mu.Lock()
	s.pids[name] = pid
	s.mu.Unlock()
	return pid, true
}

func (s *State) IsAlive(name string) bool {
	pid, ok := s.lookupPid(name)
	if !ok {
		return false
	}

	running, err := processstate.IsProcessRunning(pid)
	if err != nil || !running {
		// Stale record: file present, process absent. Clean it up so the
		// next sweep starts fresh.
		s.ClearPID(name)
		return false
	}
	return true
}

func (s *State) RecordPID(name string, pid int) error {
	s.mu.Lock()
	s.pids[name] = pid
	s.mu.Unlock()

	return s.files.WritePIDFile(name, pid)
}

func (s *State) ClearPID(name string) {
	s.mu.Lock()
	delete(s.pids, name)
	s.mu.Unlock()

	if err := s.files.RemovePIDFile(name); err != nil {
		s.logger.Warnf("Failed to remove pid file, service: %s, error: %v", name, err)
	}
}

func (s *State) Pid(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.pids[name]
	return pid, ok
}

func (s *State) Stop(name string) error {
	pid, ok := s.lookupPid(name)
	if !ok {
		s.logger.Debugf("Service not running, nothing to stop: %s", name)
		return nil
	}

	running, _ := processstate.IsProcessRunning(pid)
	if !running {
		s.ClearPID(name)
		return nil
	}

	s.logger.Infof("Stopping service: %s, pid: %d", name, pid)
	if err := process.SendTerminationSignal(pid); err != nil {
		// The process may have exited between the liveness check and the
		// signal; that is success, not failure.
		if running, _ := processstate.IsProcessRunning(pid); !running {
			s.ClearPID(name)
			return nil
		}
		return errors.NewProcessError("failed to signal process", err).WithContext("service", name).WithContext("pid", pid)
	}

	deadline := time.Now().Add(s.stopWait)
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		<-ticker.C
		if running, _ := processstate.IsProcessRunning(pid); !running {
			s.ClearPID(name)
			s.logger.Infof("Service stopped: %s", name)
			return nil
		}
	}

	// Best-effort bound elapsed. No force-kill; log the delay and move on.
	s.logger.Warnf("Service did not exit within %v, abandoning wait: %s, pid: %d", s.stopWait, name, pid)
	s.ClearPID(name)
	return nil
}

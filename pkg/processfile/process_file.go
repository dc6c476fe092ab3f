package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
)

// DefaultAppName is used for the run directory when none is configured.
const DefaultAppName = "stackd"

// Config holds configuration for pid file placement.
type Config struct {
	// Base directory for pid files. If empty, a per-app directory under
	// the OS temporary directory is used.
	BaseDirectory string

	// Application name for the default directory.
	AppName string
}

// Manager generates, writes and reads per-service pid files. One file per
// service name lives under the run directory; the file contains a bare pid.
type Manager struct {
	config Config
	logger logging.Logger
}

// NewManager creates a pid file manager with the given configuration.
func NewManager(config Config, logger logging.Logger) *Manager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.BaseDirectory == "" {
		config.BaseDirectory = filepath.Join(os.TempDir(), config.AppName)
	}
	return &Manager{
		config: config,
		logger: logger,
	}
}

// Directory returns the run directory holding all pid files.
func (m *Manager) Directory() string {
	return m.config.BaseDirectory
}

// PIDFilePath returns the pid file path for the given service name.
func (m *Manager) PIDFilePath(service string) string {
	return filepath.Join(m.config.BaseDirectory, service+".pid")
}

// WritePIDFile records the pid for a service.
func (m *Manager) WritePIDFile(service string, pid int) error {
	pidFilePath := m.PIDFilePath(service)
	m.logger.Debugf("Writing pid file, service: %s, pid: %d, path: %s", service, pid, pidFilePath)

	if err := ValidateDirectory(pidFilePath); err != nil {
		return errors.NewIOError("pid file directory validation failed", err).WithContext("pid_file", pidFilePath)
	}

	content := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(pidFilePath, []byte(content), 0644); err != nil {
		return errors.NewIOError("failed to write pid file", err).WithContext("pid_file", pidFilePath).WithContext("pid", pid)
	}

	return nil
}

// ReadPIDFile returns the recorded pid for a service. A missing file is a
// valid state and is reported as a not-found error, not an IO failure.
func (m *Manager) ReadPIDFile(service string) (int, error) {
	pidFilePath := m.PIDFilePath(service)

	content, err := os.ReadFile(pidFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("no pid file for service", err).WithContext("service", service)
		}
		return 0, errors.NewIOError("failed to read pid file", err).WithContext("pid_file", pidFilePath)
	}

	pidStr := strings.TrimSpace(string(content))
	if pidStr == "" {
		return 0, errors.NewValidationError("pid file is empty", nil).WithContext("pid_file", pidFilePath)
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid pid in pid file", err).WithContext("pid_file", pidFilePath).WithContext("content", pidStr)
	}

	return pid, nil
}

// RemovePIDFile deletes the pid file for a service. Removing an absent file
// is not an error.
func (m *Manager) RemovePIDFile(service string) error {
	pidFilePath := m.PIDFilePath(service)

	if err := os.Remove(pidFilePath); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove pid file", err).WithContext("pid_file", pidFilePath)
	}
	return nil
}

// ValidateDirectory ensures the pid file directory exists and is writable,
// creating it if necessary.
func ValidateDirectory(pidFilePath string) error {
	dir := filepath.Dir(pidFilePath)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.NewIOError("failed to create pid file directory", err).WithContext("directory", dir)
			}
		} else {
			return errors.NewIOError("failed to access pid file directory", err).WithContext("directory", dir)
		}
	} else if !info.IsDir() {
		return errors.NewValidationError("pid file path is not a directory", nil).WithContext("path", dir)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return errors.NewIOError("pid file directory is not writable", err).WithContext("directory", dir)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}

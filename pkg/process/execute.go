package process

import (
	"context"
	"os"
	"os/exec"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
)

// ExecutionConfig describes one external command: a service start routine or
// a one-shot hook.
type ExecutionConfig struct {
	Command          []string `yaml:"command"`
	Environment      []string `yaml:"environment,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
}

// IsZero reports whether no command is configured.
func (c ExecutionConfig) IsZero() bool {
	return len(c.Command) == 0
}

// ValidateExecutionConfig checks that the command is runnable.
func ValidateExecutionConfig(execution ExecutionConfig) error {
	if len(execution.Command) == 0 {
		return errors.NewValidationError("command cannot be empty", nil)
	}
	if execution.Command[0] == "" {
		return errors.NewValidationError("command executable cannot be empty", nil)
	}
	return nil
}

// Spawn starts a detached long-running process and returns immediately with
// its handle. The child is placed in its own process group so it survives
// the supervisor's terminal and can be signalled as a tree. The returned
// process is reaped in the background; the supervisor never blocks on it.
func Spawn(execution ExecutionConfig, id string, logger logging.Logger) (*os.Process, error) {
	if err := ValidateExecutionConfig(execution); err != nil {
		return nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	logger.Debugf("Spawning process, id: %s, command: %v, working directory: %s",
		id, execution.Command, execution.WorkingDirectory)

	cmd := exec.Command(execution.Command[0], execution.Command[1:]...)
	cmd.Dir = execution.WorkingDirectory
	cmd.Env = append(os.Environ(), execution.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Platform-specific setup lives in execute_unix.go / execute_windows.go.
	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProcessError("failed to start process", err).WithContext("id", id).WithContext("command", execution.Command[0])
	}

	logger.Infof("Spawned process, id: %s, pid: %d", id, cmd.Process.Pid)

	// Reap the child when it exits. Without this a dead child lingers as a
	// zombie and still answers liveness probes, so the watchdog would never
	// restart it.
	go func() {
		state, err := cmd.Process.Wait()
		if err != nil {
			logger.Debugf("Wait failed, id: %s, pid: %d, error: %v", id, cmd.Process.Pid, err)
			return
		}
		logger.Infof("Process exited, id: %s, pid: %d, status: %s", id, cmd.Process.Pid, state.String())
	}()

	return cmd.Process, nil
}

// RunHook runs a one-shot external command to completion, inheriting the
// supervisor's stdio. Used for the migrations and startup hooks.
func RunHook(ctx context.Context, execution ExecutionConfig, id string, logger logging.Logger) error {
	if err := ValidateExecutionConfig(execution); err != nil {
		return errors.NewValidationError("invalid hook configuration", err).WithContext("id", id)
	}

	logger.Infof("Running hook, id: %s, command: %v", id, execution.Command)

	cmd := exec.CommandContext(ctx, execution.Command[0], execution.Command[1:]...)
	cmd.Dir = execution.WorkingDirectory
	cmd.Env = append(os.Environ(), execution.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelledError("hook cancelled", ctx.Err()).WithContext("id", id)
		}
		return errors.NewProcessError("hook failed", err).WithContext("id", id).WithContext("command", execution.Command[0])
	}

	logger.Infof("Hook completed, id: %s", id)
	return nil
}

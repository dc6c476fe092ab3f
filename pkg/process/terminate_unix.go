//go:build !windows

package process

import (
	"syscall"
)

// SendTerminationSignal asks the process to exit with SIGTERM. The signal
// goes to the process group (negative pid) so the whole tree is covered;
// if the group is already gone the bare pid is tried as a fallback.
func SendTerminationSignal(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		return syscall.Kill(pid, syscall.SIGTERM)
	}
	return nil
}

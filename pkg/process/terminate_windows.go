//go:build windows

package process

import (
	"os"
)

// SendTerminationSignal asks the process to exit. Windows has no SIGTERM
// equivalent for arbitrary processes, so this terminates directly.
func SendTerminationSignal(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Kill()
}

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes places the child in a new process group so the
// whole tree can be signalled with one kill to -pid.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

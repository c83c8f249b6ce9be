//go:build unix

package launcher

import (
	"os/exec"
	"syscall"
)

// detach moves the child into its own process group, so terminal signals
// aimed at the supervisor do not reach the payload.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the backend in its own process group so a
// shutdown hook can signal the backend and anything it forks.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

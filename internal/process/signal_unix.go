//go:build !windows

package process

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminateGroup asks the backend's process group to exit.
func terminateGroup(p *os.Process) error {
	return unix.Kill(-p.Pid, unix.SIGTERM)
}

// killGroup forcibly kills the backend's process group.
func killGroup(p *os.Process) error {
	return unix.Kill(-p.Pid, unix.SIGKILL)
}

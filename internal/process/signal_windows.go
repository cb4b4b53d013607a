//go:build windows

package process

import "os"

// terminateGroup has no graceful equivalent for a windowless child on Windows.
func terminateGroup(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

package process

import (
	"os/exec"

	"github.com/loykin/sidecar/internal/logger"
)

// Spec describes the backend process to spawn.
type Spec struct {
	Name    string            `json:"name"`     // logical name, used for log file names
	Path    string            `json:"path"`     // resolved executable path
	Args    []string          `json:"args"`     // fixed argument set, e.g. --port 8000
	WorkDir string            `json:"work_dir"` // optional working dir
	Env     []string          `json:"env"`      // full environment; empty inherits the shell's
	PIDFile string            `json:"pid_file"` // optional pidfile path written after start
	Log     logger.FileConfig `json:"log"`      // stdout/stderr destinations
}

// BuildCommand constructs the *exec.Cmd for the spec without starting it.
// The backend is always executed directly, never through a shell.
func (s *Spec) BuildCommand() *exec.Cmd {
	// ok: Path comes from the resolver, not from user input
	// #nosec G204
	cmd := exec.Command(s.Path, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}
	configureSysProcAttr(cmd)
	return cmd
}

package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/sidecar/internal/detector"
)

// writePIDFile records pid and start metadata in the format read by detector.ReadPIDFile.
func writePIDFile(path string, pid int, launchID string) error {
	meta, err := json.Marshal(detector.PIDFileMeta{StartUnix: time.Now().Unix(), LaunchID: launchID})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n%s\n", pid, meta)), 0o600)
}

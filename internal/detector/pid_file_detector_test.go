package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestPIDFileDetector(t *testing.T) {
	dir := t.TempDir()
	pidfile := filepath.Join(dir, "backend.pid")
	d := PIDFileDetector{PIDFile: pidfile}

	// not exists -> false,nil
	alive, err := d.Alive()
	if err != nil || alive {
		t.Fatalf("expected false,nil for missing file, got %v %v", alive, err)
	}

	// invalid content -> error
	if err := os.WriteFile(pidfile, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if alive, err = d.Alive(); err == nil {
		t.Fatalf("expected error for invalid pid, got alive=%v", alive)
	}

	// pid 0 -> false,nil
	if err := os.WriteFile(pidfile, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}
	alive, err = d.Alive()
	if err != nil || alive {
		t.Fatalf("expected false,nil for pid 0, got %v %v", alive, err)
	}

	// current process -> alive
	if err := os.WriteFile(pidfile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	alive, err = d.Alive()
	if err != nil || !alive {
		t.Fatalf("expected own pid alive, got %v %v", alive, err)
	}
	if d.Describe() != "pidfile:"+pidfile {
		t.Fatalf("Describe mismatch: %q", d.Describe())
	}
}

func TestPIDFileDetector_ReusedPID(t *testing.T) {
	pidfile := filepath.Join(t.TempDir(), "backend.pid")
	meta, _ := json.Marshal(PIDFileMeta{StartUnix: time.Now().Add(-48 * time.Hour).Unix()})
	data := fmt.Sprintf("%d\n%s\n", os.Getpid(), meta)
	if err := os.WriteFile(pidfile, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	alive, err := PIDFileDetector{PIDFile: pidfile}.Alive()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if alive {
		t.Fatalf("a pid whose start time disagrees with the pidfile must not be reported alive")
	}
}

func TestReadPIDFile_Meta(t *testing.T) {
	pidfile := filepath.Join(t.TempDir(), "backend.pid")
	if err := os.WriteFile(pidfile, []byte("4242\n{\"start_unix\":17,\"launch_id\":\"abc\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pid, meta, err := ReadPIDFile(pidfile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != 4242 || meta.StartUnix != 17 || meta.LaunchID != "abc" {
		t.Fatalf("unexpected parse: pid=%d meta=%+v", pid, meta)
	}
}

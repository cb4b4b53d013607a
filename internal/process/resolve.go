package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolver maps a logical backend name to a platform-specific binary, the way
// bundled sidecars are laid out next to the shell executable:
//
//	<dir>/<name>-<target-triple>[.exe]
//	<dir>/<name>[.exe]
//
// A name containing a path separator is treated as a path and used as is.
type Resolver struct {
	Dir    string // directory holding bundled binaries; defaults to the shell executable's dir
	Lookup bool   // fall back to searching PATH
	GOOS   string // overrides runtime.GOOS (tests)
	GOARCH string // overrides runtime.GOARCH (tests)
}

// TargetTriple returns the target triple used to suffix bundled binaries.
func TargetTriple(goos, goarch string) string {
	arch := map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch64",
		"386":   "i686",
		"arm":   "armv7",
	}[goarch]
	if arch == "" {
		arch = goarch
	}
	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		if goarch == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	default:
		return arch + "-unknown-" + goos
	}
}

// Candidates lists the paths tried for name, in order.
func (r Resolver) Candidates(name string) []string {
	goos, goarch := r.platform()
	ext := ""
	if goos == "windows" {
		ext = ".exe"
	}
	dir := r.Dir
	if dir == "" {
		if exe, err := os.Executable(); err == nil {
			dir = filepath.Dir(exe)
		}
	}
	base := strings.TrimSuffix(name, ext)
	return []string{
		filepath.Join(dir, base+"-"+TargetTriple(goos, goarch)+ext),
		filepath.Join(dir, base+ext),
	}
}

// Resolve returns the absolute path of the binary for name.
func (r Resolver) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrExecutableNotFound)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return checkExecutable(name)
	}
	for _, c := range r.Candidates(name) {
		if _, err := os.Stat(c); err == nil {
			return checkExecutable(c)
		}
	}
	if r.Lookup {
		if p, err := exec.LookPath(name); err == nil {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

func (r Resolver) platform() (string, string) {
	goos, goarch := r.GOOS, r.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return goos, goarch
}

func checkExecutable(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, path)
		}
		return "", err
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}

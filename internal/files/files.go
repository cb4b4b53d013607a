package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

var (
	// ErrIO wraps every underlying filesystem failure.
	ErrIO = errors.New("file i/o failed")
	// ErrNotFound is returned when a required base directory does not exist.
	ErrNotFound = errors.New("path does not exist")
)

// Service performs the shell's small set of filesystem operations.
type Service struct {
	fs afero.Fs
}

// New returns a Service backed by fs. A nil fs uses the OS filesystem.
func New(fs afero.Fs) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{fs: fs}
}

// WriteFile creates or truncates path and writes content to it.
func (s *Service) WriteFile(path string, content []byte) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrIO)
	}
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// PathExists reports whether path exists. Errors other than not-exist are returned wrapped.
func (s *Service) PathExists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return ok, nil
}

// UniqueFolderName returns name if base/name is free, otherwise the first free name_N
// counting from 1. base must exist.
func (s *Service) UniqueFolderName(base, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty folder name", ErrIO)
	}
	fi, err := s.fs.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: base path %s", ErrNotFound, base)
		}
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: base path %s is not a directory", ErrIO, base)
	}
	candidate := name
	for n := 1; ; n++ {
		ok, err := s.PathExists(filepath.Join(base, candidate))
		if err != nil {
			return "", err
		}
		if !ok {
			return candidate, nil
		}
		candidate = name + "_" + strconv.Itoa(n)
	}
}

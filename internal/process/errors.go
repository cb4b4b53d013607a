package process

import "errors"

var (
	// ErrExecutableNotFound is returned when a logical backend name resolves to no file.
	ErrExecutableNotFound = errors.New("backend executable not found")
	// ErrNotExecutable is returned when the resolved file lacks execute permission.
	ErrNotExecutable = errors.New("backend file is not executable")
)

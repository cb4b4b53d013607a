package detector

// Detector is a strategy that determines if the backend is running.
// Implementations may dial the health endpoint, check a PID file, or run a script.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the backend is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

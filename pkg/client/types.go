package client

import "time"

// BackendStatus is the spawned backend as reported by the shell.
type BackendStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitErr   string    `json:"exit_error,omitempty"`
}

// Outcome is the terminal result of a supervision sequence.
type Outcome struct {
	Outcome  string        `json:"outcome"`
	State    string        `json:"state"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	LaunchID string        `json:"launch_id"`
	PID      int           `json:"pid,omitempty"`
}

// ShellStatus is the response of GET /supervisor/status.
type ShellStatus struct {
	State    string         `json:"state"`
	Endpoint string         `json:"endpoint"`
	LaunchID string         `json:"launch_id,omitempty"`
	Result   *Outcome       `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Backend  *BackendStatus `json:"backend,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type dialogResponse struct {
	Cancelled bool     `json:"cancelled"`
	Paths     []string `json:"paths"`
	Path      string   `json:"path"`
}

type writeFileRequest struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type uniqueNameRequest struct {
	BasePath   string `json:"base_path"`
	FolderName string `json:"folder_name"`
}

type uniqueNameResponse struct {
	Name string `json:"name"`
}

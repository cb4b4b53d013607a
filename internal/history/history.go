package history

import (
	"context"
	"time"
)

// EventType defines the kind of supervision event.
type EventType string

const (
	// EventLaunch is emitted once per supervision sequence, at its terminal state.
	EventLaunch EventType = "launch"
	// EventStop is emitted when the shell stops a backend it spawned.
	EventStop EventType = "stop"
)

// Record describes one supervision sequence. The db tags match the launch_history table.
type Record struct {
	LaunchID  string `json:"launch_id" db:"launch_id"`
	Backend   string `json:"backend" db:"backend"`
	Endpoint  string `json:"endpoint" db:"endpoint"`
	Outcome   string `json:"outcome" db:"outcome"`
	State     string `json:"state" db:"state"`
	Attempts  int    `json:"attempts" db:"attempts"`
	ElapsedMS int64  `json:"elapsed_ms" db:"elapsed_ms"`
	PID       int    `json:"pid" db:"pid"`
	Error     string `json:"error,omitempty" db:"error"`
}

// Event represents a supervision event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type" db:"event"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	Record     `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Table is the relational table written by the SQL sinks and read by Reader.
const Table = "launch_history"

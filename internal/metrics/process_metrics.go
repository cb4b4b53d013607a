package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessSample holds CPU and memory usage for a single process.
type ProcessSample struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// SampleProcess reads the current usage of pid.
func SampleProcess(ctx context.Context, pid int32) (ProcessSample, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcessSample{}, fmt.Errorf("failed to create process handle: %w", err)
	}
	name, _ := proc.NameWithContext(ctx)

	// first call may report 0 until a second sample exists
	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		slog.Debug("Failed to get CPU percent", "pid", pid, "error", err)
		cpuPercent = 0
	}
	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessSample{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	numThreads, err := proc.NumThreadsWithContext(ctx)
	if err != nil {
		slog.Debug("Failed to get thread count", "pid", pid, "error", err)
		numThreads = 0
	}
	s := ProcessSample{
		PID:        pid,
		Name:       name,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		MemoryVMS:  memInfo.VMS,
		NumThreads: numThreads,
		Timestamp:  time.Now(),
	}
	if runtime.GOOS != "windows" {
		if numFDs, err := proc.NumFDsWithContext(ctx); err == nil {
			s.NumFDs = numFDs
		}
	}
	return s, nil
}

// WatchBackend samples pid every interval and publishes the result to the backend gauges
// until ctx is cancelled or the process disappears.
func WatchBackend(ctx context.Context, pid int32, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s, err := SampleProcess(ctx, pid)
		if err != nil {
			slog.Debug("backend sampling stopped", "pid", pid, "error", err)
			SetBackendUsage(0, 0)
			return
		}
		SetBackendUsage(s.CPUPercent, s.MemoryRSS)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

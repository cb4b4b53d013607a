package main

import "time"

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags Flag structs to decouple cobra from logic for testing.
type RunFlags struct {
	Headless bool
	// Once returns after the supervision outcome instead of serving until interrupted.
	Once bool
}

type ProbeFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

type WaitFlags struct {
	Host     string
	Port     int
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

type HistoryFlags struct {
	Limit    int
	LaunchID string
	DSN      string
}

type UniqueNameFlags struct {
	Base string
	Name string
}

type ConfigInitFlags struct {
	Force bool
}

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errNotLive) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// buildRoot creates the root command and its subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	sidecarCommand := &command{global: globalFlags}

	root := createRootCommand(globalFlags, sidecarCommand)
	root.AddCommand(
		createRunCommand(sidecarCommand, &RunFlags{}),
		createProbeCommand(sidecarCommand, &ProbeFlags{}),
		createWaitCommand(sidecarCommand, &WaitFlags{}),
		createStatusCommand(sidecarCommand),
		createHistoryCommand(sidecarCommand, &HistoryFlags{}),
		createUniqueNameCommand(sidecarCommand, &UniqueNameFlags{}),
		createConfigCommand(sidecarCommand, &ConfigInitFlags{}),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags, c *command) *cobra.Command {
	root := &cobra.Command{
		Use:   "sidecar",
		Short: "Desktop shell that supervises a local backend server",
		Long: `Sidecar starts a bundled backend server unless one already listens on its
endpoint, waits for it to accept connections, then reveals the main surface.

Examples:
  sidecar run                           # Terminal UI with splash screen
  sidecar run --headless --config=sidecar.toml
  sidecar probe --port=8000             # Exit code 0 when something listens
  sidecar history --limit=5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.out = cmd.OutOrStdout()
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

// createRunCommand creates the run subcommand
func createRunCommand(c *command, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Supervise the backend and show the shell",
		Long: `Run the full shell: logging, metrics and history setup, the loopback command API,
the backend supervision sequence and the splash/main surfaces.

Examples:
  sidecar run
  sidecar run --headless          # Log-only host, serves until interrupted
  sidecar run --headless --once   # Exit after the supervision outcome`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context(), *runFlags)
		},
	}

	cmd.Flags().BoolVar(&runFlags.Headless, "headless", false, "log-only host without terminal UI")
	cmd.Flags().BoolVar(&runFlags.Once, "once", false, "exit after the supervision outcome (headless only)")

	return cmd
}

// createProbeCommand creates the probe subcommand
func createProbeCommand(c *command, probeFlags *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the backend endpoint once",
		Long: `Attempt a single TCP connection to the backend endpoint.
Exits 0 when something accepts the connection and 1 otherwise.

Examples:
  sidecar probe
  sidecar probe --host=127.0.0.1 --port=8000 --timeout=500ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Probe(cmd.Context(), *probeFlags, cmd.Flags().Changed)
		},
	}

	cmd.Flags().StringVar(&probeFlags.Host, "host", "", "backend host (default from config)")
	cmd.Flags().IntVar(&probeFlags.Port, "port", 0, "backend port (default from config)")
	cmd.Flags().DurationVar(&probeFlags.Timeout, "timeout", time.Second, "connection timeout")

	return cmd
}

// createWaitCommand creates the wait subcommand
func createWaitCommand(c *command, waitFlags *WaitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the backend accepts connections",
		Long: `Probe the backend endpoint until it accepts a connection or the retry budget
is spent. No backend is started.

Examples:
  sidecar wait
  sidecar wait --attempts=10 --interval=500ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Wait(cmd.Context(), *waitFlags, cmd.Flags().Changed)
		},
	}

	cmd.Flags().StringVar(&waitFlags.Host, "host", "", "backend host (default from config)")
	cmd.Flags().IntVar(&waitFlags.Port, "port", 0, "backend port (default from config)")
	cmd.Flags().IntVar(&waitFlags.Attempts, "attempts", 0, "maximum probes (default from config)")
	cmd.Flags().DurationVar(&waitFlags.Interval, "interval", 0, "pause between probes (default from config)")
	cmd.Flags().DurationVar(&waitFlags.Timeout, "timeout", 0, "per-probe timeout (default from config)")

	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend liveness and resource usage",
		Long: `Run the configured detectors (endpoint probe, PID file and extra entries) and,
when a PID file names a live process, sample its CPU and memory usage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context())
		},
	}
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(c *command, historyFlags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent launches",
		Long: `List launch and stop events recorded by the history sink.
Only SQL sinks (sqlite, postgres) can be read back.

Examples:
  sidecar history --limit=5
  sidecar history --launch-id=0b6f...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), *historyFlags)
		},
	}

	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum events to list")
	cmd.Flags().StringVar(&historyFlags.LaunchID, "launch-id", "", "only events of this launch")
	cmd.Flags().StringVar(&historyFlags.DSN, "dsn", "", "history DSN (default from config)")

	return cmd
}

// createUniqueNameCommand creates the unique-name subcommand
func createUniqueNameCommand(c *command, uniqueFlags *UniqueNameFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unique-name",
		Short: "Print a folder name not yet taken under a base directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.UniqueName(*uniqueFlags)
		},
	}

	cmd.Flags().StringVar(&uniqueFlags.Base, "base", "", "base directory (required)")
	cmd.Flags().StringVar(&uniqueFlags.Name, "name", "", "desired folder name (required)")
	if err := cmd.MarkFlagRequired("base"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// createConfigCommand creates the config command group
func createConfigCommand(c *command, initFlags *ConfigInitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as TOML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sidecar.toml"
			if len(args) > 0 {
				path = args[0]
			}
			return c.ConfigInit(path, *initFlags)
		},
	}
	initCmd.Flags().BoolVar(&initFlags.Force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

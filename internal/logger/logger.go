package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// FileConfig describes rotated file destinations.
// For backend output, if StdoutPath/StderrPath are empty and Dir is set, files will be
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string `toml:"dir" json:"dir" mapstructure:"dir"`
	StdoutPath string `toml:"stdout" json:"stdout" mapstructure:"stdout"`
	StderrPath string `toml:"stderr" json:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" mapstructure:"compress"`
}

// Config is the shell's logging configuration.
//
// Level, Format, Color and Path control the shell's own slog output. File controls where
// the supervised backend's stdout/stderr go.
type Config struct {
	Level  string     `toml:"level" json:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string     `toml:"format" json:"format" mapstructure:"format"` // text or json
	Color  bool       `toml:"color" json:"color" mapstructure:"color"`    // ANSI level colors for text output
	Path   string     `toml:"path" json:"path" mapstructure:"path"`       // optional rotated file for shell logs
	File   FileConfig `toml:"file" json:"file" mapstructure:"file"`
}

// ProcessWriters returns io.WriteClosers for stdout and stderr for the given process name.
// Either may be nil when no destination is configured for it.
func (c Config) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	return c.File.Writers(name)
}

// Writers returns rotated writers for stdout and stderr of process name.
func (f FileConfig) Writers(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := f.StdoutPath
	stderr := f.StderrPath
	if stdout == "" && f.Dir != "" {
		stdout = filepath.Join(f.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && f.Dir != "" {
		stderr = filepath.Join(f.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	for _, p := range []string{stdout, stderr} {
		if p == "" {
			continue
		}
		if err := ensureWritable(p); err != nil {
			return nil, nil, err
		}
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = f.rotated(stdout)
	}
	if stderr != "" {
		errW = f.rotated(stderr)
	}
	return outW, errW, nil
}

// ensureWritable creates the parent directory of path and checks the file can be opened
// for appending; lumberjack itself only fails on the first write.
func ensureWritable(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("log file %s: %w", path, err)
	}
	return f.Close()
}

// Enabled reports whether any backend output destination is configured.
func (f FileConfig) Enabled() bool {
	return f.Dir != "" || f.StdoutPath != "" || f.StderrPath != ""
}

func (f FileConfig) rotated(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

// ParseLevel maps a level name to slog.Level. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w and, when Path is set, to a rotated file as well.
// The returned closer releases the file; it is never nil.
func (c Config) New(w io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	var closer io.Closer = nopCloser{}
	if c.Path != "" {
		_ = os.MkdirAll(filepath.Dir(c.Path), 0o750)
		fw := c.File.rotated(c.Path)
		closer = fw
		if w == nil {
			w = fw
		} else {
			w = io.MultiWriter(w, fw)
		}
	}
	if w == nil {
		w = io.Discard
	}
	var h slog.Handler
	switch {
	case strings.EqualFold(c.Format, "json"):
		h = slog.NewJSONHandler(w, opts)
	case c.Color && c.Path == "":
		h = NewColorTextHandler(w, opts, true)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer
}

// Setup installs the configured logger as slog's default.
func Setup(c Config) io.Closer {
	l, closer := c.New(os.Stderr)
	slog.SetDefault(l)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

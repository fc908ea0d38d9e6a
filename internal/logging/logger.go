// Package logging configures the runtime JSONL log file and the operator
// console.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Runtime bundles the configured loggers and the log file lifecycle.
type Runtime struct {
	Logger  *slog.Logger
	Console *log.Logger
	Path    string
	closer  io.Closer
}

// Options controls log verbosity and where console notices go.
type Options struct {
	Debug   bool
	Console io.Writer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a JSONL logger rooted at the resolved state path plus a console
// logger for single-line operator notices.
func New(opts Options) (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	return Runtime{
		Logger:  logger,
		Console: NewConsole(console, opts.Debug),
		Path:    path,
		closer:  f,
	}, nil
}

// NewConsole returns the notice logger used for operator-facing lines.
func NewConsole(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "promptvoice",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "promptvoice", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "promptvoice", "log.jsonl"), nil
}

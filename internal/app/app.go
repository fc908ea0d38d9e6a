// Package app dispatches parsed commands to the narration runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rbright/promptvoice/internal/audio"
	"github.com/rbright/promptvoice/internal/automation"
	"github.com/rbright/promptvoice/internal/capture"
	"github.com/rbright/promptvoice/internal/cli"
	"github.com/rbright/promptvoice/internal/clicker"
	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/doctor"
	"github.com/rbright/promptvoice/internal/indicator"
	"github.com/rbright/promptvoice/internal/logging"
	"github.com/rbright/promptvoice/internal/speech"
	"github.com/rbright/promptvoice/internal/version"
)

const binaryName = "promptvoice"

// Router is the audio surface the runner drives.
type Router interface {
	ListDevices(ctx context.Context) []audio.Device
	SetupRouting(ctx context.Context, spec config.AudioRoutingSpec) (bool, string)
	Close(ctx context.Context) error
}

// Runner executes one CLI invocation. Zero-valued collaborators fall back to
// the live Pulse, screen, and HTTP implementations.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Router     Router
	Source     automation.Source
	Player     audio.Player
	HTTPClient *http.Client
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// env is the per-invocation state shared by command handlers.
type env struct {
	loaded  config.Loaded
	cfg     config.Config
	logger  *slog.Logger
	console *log.Logger
	router  Router
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Debug: parsed.Debug, Console: r.Stderr})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}
	console := logRuntime.Console

	cfgLoaded, err := config.Load(parsed.ConfigPath, parsed.CredentialsPath)
	if err != nil {
		console.Error("load config failed", "err", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		console.Warn(msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	cfg := cfgLoaded.Config
	if parsed.Backend != "" {
		cfg.Engine.Backend = parsed.Backend
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"credentials", cfgLoaded.CredentialsPath,
		"backend", cfg.Engine.Backend,
		"log", logRuntime.Path,
	)

	e := env{loaded: cfgLoaded, cfg: cfg, logger: logger, console: console, router: r.router(logger)}

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, e)
	case cli.CommandDevices:
		return r.commandDevices(ctx, e)
	case cli.CommandVoices:
		return r.commandVoices(ctx, e)
	case cli.CommandBackends:
		return r.commandBackends(e)
	case cli.CommandRoute:
		return r.commandRoute(ctx, e)
	case cli.CommandClick:
		return r.commandClick(ctx, e, parsed.Arg)
	case cli.CommandDoctor:
		loaded := e.loaded
		loaded.Config = e.cfg
		report := doctor.Run(ctx, loaded, doctor.Options{Devices: e.router, Speech: r.speechDeps(e)})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) router(logger *slog.Logger) Router {
	if r.Router != nil {
		return r.Router
	}
	return audio.NewRouter(logger)
}

func (r Runner) speechDeps(e env) speech.Deps {
	player := r.Player
	if player == nil {
		player = audio.NewPlayer(binaryName + " narration")
	}
	return speech.Deps{
		Logger:     e.logger,
		Player:     player,
		HTTPClient: r.HTTPClient,
		GRPCDump:   e.cfg.Debug.EnableGRPCDump,
	}
}

// createBackend builds the configured backend or reports why it cannot.
func (r Runner) createBackend(e env) (speech.Backend, bool) {
	backend, err := speech.Create(e.cfg.Engine.Backend, e.cfg.Engine, r.speechDeps(e))
	if err == nil {
		return backend, true
	}

	var notFound *speech.NotFoundError
	var missing *speech.CredentialsError
	switch {
	case errors.As(err, &notFound):
		e.console.Error("unknown speech backend", "backend", notFound.Name, "available", strings.Join(speech.Names(), ", "))
	case errors.As(err, &missing):
		e.console.Error("missing credentials", "backend", missing.Backend, "fields", strings.Join(missing.Missing, ", "), "file", e.loaded.CredentialsPath)
	default:
		e.console.Error("create speech backend failed", "backend", e.cfg.Engine.Backend, "err", err)
	}
	e.logger.Error("create speech backend failed", "backend", e.cfg.Engine.Backend, "error", err.Error())
	return nil, false
}

func closeBackend(backend speech.Backend, logger *slog.Logger) {
	closer, ok := backend.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("close speech backend failed", "error", err.Error())
	}
}

func (r Runner) commandRun(ctx context.Context, e env) int {
	backend, ok := r.createBackend(e)
	if !ok {
		return 1
	}
	defer closeBackend(backend, e.logger)

	notifier := indicator.New(e.cfg.Indicator, e.console, e.logger)

	routed, message := e.router.SetupRouting(ctx, e.cfg.Audio)
	if routed {
		notifier.Info(ctx, message)
	} else {
		e.console.Error(message)
		notifier.Error(ctx, message)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.router.Close(cleanupCtx); err != nil {
			e.logger.Warn("audio routing cleanup failed", "error", err.Error())
		}
		notifier.Hide(cleanupCtx)
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watched := []string{e.loaded.Path, e.loaded.CredentialsPath}
	if err := config.Watch(watchCtx, watched, func(path string) {
		notifier.Warn(watchCtx, fmt.Sprintf("%s changed; restart to apply", path))
		e.logger.Info("config change detected", "path", path)
	}); err != nil {
		e.logger.Debug("config watcher unavailable", "error", err.Error())
	}

	source := r.Source
	if source == nil {
		source = capture.New(e.cfg.Capture, e.logger)
	}

	loop := automation.New(source, backend, notifier, e.cfg.Capture.Region, e.cfg.Timing, e.logger)
	if c := loopClicker(e.cfg.Clicker, e.logger); c != nil {
		e.logger.Info("click automation enabled", "record", automation.ActionRecord, "continue", automation.ActionContinue)
		loop.WithClicker(c)
	}
	result := loop.Run(ctx)

	fmt.Fprintf(r.Stdout, "stopped after %d cycles: %d spoken, %d failed\n", result.Cycles, result.Spoken, result.SpeakFailures)
	return 0
}

// loopClicker returns a clicker for the narration loop when both the record
// and continue actions are configured, and nil otherwise.
func loopClicker(cfg config.ClickerConfig, logger *slog.Logger) automation.Clicker {
	c := clicker.New(cfg, logger)
	if !c.Has(automation.ActionRecord) || !c.Has(automation.ActionContinue) {
		return nil
	}
	return c
}

func (r Runner) commandDevices(ctx context.Context, e env) int {
	devices := e.router.ListDevices(ctx)
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s %-6s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.Direction,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandVoices(ctx context.Context, e env) int {
	backend, ok := r.createBackend(e)
	if !ok {
		return 1
	}
	defer closeBackend(backend, e.logger)

	voices := backend.Voices(ctx)
	if len(voices) == 0 {
		fmt.Fprintf(r.Stdout, "no voices reported by %s\n", backend.Name())
		return 1
	}
	for _, voice := range voices {
		fmt.Fprintln(r.Stdout, voice)
	}
	return 0
}

func (r Runner) commandBackends(e env) int {
	for _, name := range speech.Names() {
		mark := " "
		if strings.EqualFold(name, e.cfg.Engine.Backend) {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s\n", mark, name)
	}
	return 0
}

// commandRoute applies routing and leaves any aggregate output loaded.
func (r Runner) commandRoute(ctx context.Context, e env) int {
	ok, message := e.router.SetupRouting(ctx, e.cfg.Audio)
	fmt.Fprintln(r.Stdout, message)
	if !ok {
		return 1
	}
	return 0
}

func (r Runner) commandClick(ctx context.Context, e env, action string) int {
	if err := clicker.New(e.cfg.Clicker, e.logger).Click(ctx, action); err != nil {
		e.console.Error("click failed", "action", action, "err", err)
		return 1
	}
	return 0
}

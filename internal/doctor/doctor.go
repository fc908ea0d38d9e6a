// Package doctor runs readiness diagnostics for config, credentials, tools,
// audio devices, and the configured speech backend.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/promptvoice/internal/audio"
	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/speech"
)

const runtimeCheckTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DeviceLister is the audio surface doctor inspects.
type DeviceLister interface {
	ListDevices(ctx context.Context) []audio.Device
}

// Options carries live collaborators for the runtime checks.
type Options struct {
	Devices DeviceLister
	Speech  speech.Deps
}

// Run executes environment, config, and runtime checks for a loaded config.
// The backend and audio checks run concurrently.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkCredentials(loaded)}

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	checks = append(checks, checkCommand(cfg.Capture.OCR, "capture.ocr_cmd"))
	if reason := hyprctlReason(cfg); reason != "" {
		checks = append(checks, checkBinary("hyprctl", reason))
	}
	checks = append(checks, checkClickerCommands(cfg.Clicker)...)

	runtime := []func(context.Context) Check{
		func(ctx context.Context) Check { return checkBackend(ctx, cfg.Engine, opts.Speech) },
		func(ctx context.Context) Check { return checkAudioRouting(ctx, cfg.Audio, opts.Devices) },
	}
	results := make([]Check, len(runtime))

	runtimeCtx, cancel := context.WithTimeout(ctx, runtimeCheckTimeout)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runtimeCtx)
	for i, runCheck := range runtime {
		group.Go(func() error {
			results[i] = runCheck(groupCtx)
			return nil
		})
	}
	_ = group.Wait()

	return Report{Checks: append(checks, results...)}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 {
		message = fmt.Sprintf("%s with %d warning(s)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkCredentials(loaded config.Loaded) Check {
	names := make([]string, 0, len(loaded.Config.Engine.Credentials))
	for name, cred := range loaded.Config.Engine.Credentials {
		if !cred.Empty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	configured := "none"
	if len(names) > 0 {
		configured = strings.Join(names, ", ")
	}
	return Check{
		Name:    "credentials",
		Pass:    true,
		Message: fmt.Sprintf("%s (configured: %s)", loaded.CredentialsPath, configured),
	}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that cmd names a runnable program.
func checkCommand(cmd config.CommandConfig, name string) Check {
	program := cmd.Program()
	if program == "" {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(program, fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// hyprctlReason names the feature needing hyprctl, or "" when none does.
func hyprctlReason(cfg config.Config) string {
	if strings.TrimSpace(cfg.Capture.WindowClass) != "" {
		return "focus gating requires hyprctl"
	}
	for _, action := range cfg.Clicker.Actions {
		if strings.TrimSpace(action.Shortcut) != "" {
			return "shortcut click actions require hyprctl"
		}
	}
	if cfg.Indicator.Enable && !strings.EqualFold(cfg.Indicator.Backend, "desktop") {
		return "hypr indicator requires hyprctl"
	}
	return ""
}

func checkClickerCommands(cfg config.ClickerConfig) []Check {
	names := make([]string, 0, len(cfg.Actions))
	for name, action := range cfg.Actions {
		if action.Cmd.Program() != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	checks := make([]Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, checkCommand(cfg.Actions[name].Cmd, "clicker."+name))
	}
	return checks
}

// checkBackend constructs the configured backend exactly as run would.
func checkBackend(ctx context.Context, engine config.EngineConfig, deps speech.Deps) Check {
	name := "speech." + engine.Backend
	backend, err := speech.Create(engine.Backend, engine, deps)
	if err != nil {
		var notFound *speech.NotFoundError
		var missing *speech.CredentialsError
		switch {
		case errors.As(err, &notFound), errors.As(err, &missing):
			return Check{Name: name, Pass: false, Message: err.Error()}
		default:
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("construct backend: %v", err)}
		}
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	if local, ok := backend.(interface{ Binary() string }); ok {
		path, err := exec.LookPath(local.Binary())
		if err != nil {
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", local.Binary())}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("local backend ready (%s)", path)}
	}

	voices := backend.Voices(ctx)
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("network backend ready (%d voices listed)", len(voices))}
}

// checkAudioRouting lists devices and resolves the configured routing targets.
func checkAudioRouting(ctx context.Context, spec config.AudioRoutingSpec, lister DeviceLister) Check {
	const name = "audio.routing"
	if lister == nil {
		return Check{Name: name, Pass: false, Message: "no audio device lister available"}
	}

	devices := lister.ListDevices(ctx)
	if len(devices) == 0 {
		return Check{Name: name, Pass: false, Message: "no audio devices found (is PulseAudio or PipeWire running?)"}
	}

	var resolved []string
	if target := strings.TrimSpace(spec.OutputDevice); target != "" {
		device, err := audio.FindDevice(devices, audio.Output, target)
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		resolved = append(resolved, fmt.Sprintf("output=%s", device.ID))
	}
	if spec.EnableMonitoring && strings.TrimSpace(spec.MonitoringDevice) != "" {
		device, err := audio.FindDevice(devices, audio.Output, spec.MonitoringDevice)
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		resolved = append(resolved, fmt.Sprintf("monitoring=%s", device.ID))
	}

	if len(resolved) == 0 {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%d devices; routing left unchanged", len(devices))}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%d devices; %s", len(devices), strings.Join(resolved, " "))}
}

package config

import (
	"fmt"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Engine.Backend) == "" {
		return nil, fmt.Errorf("tts.backend must not be empty")
	}
	if cfg.Engine.Rate <= 0 {
		return nil, fmt.Errorf("tts.rate must be > 0")
	}
	if cfg.Engine.Volume < 0 || cfg.Engine.Volume > 1 {
		return nil, fmt.Errorf("tts.volume must be within [0, 1]")
	}
	if cfg.Engine.Pitch <= 0 {
		return nil, fmt.Errorf("tts.pitch must be > 0")
	}

	region := cfg.Capture.Region
	if region.X < 0 || region.Y < 0 {
		return nil, fmt.Errorf("capture.region x and y must be >= 0")
	}
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("capture.region width and height must be > 0")
	}
	if len(cfg.Capture.OCR.Argv) == 0 {
		return nil, fmt.Errorf("capture.ocr_cmd must not be empty")
	}

	if cfg.Timing.CheckInterval <= 0 {
		return nil, fmt.Errorf("timing.check_interval_ms must be > 0")
	}
	if cfg.Timing.RetryDelay <= 0 {
		return nil, fmt.Errorf("timing.retry_delay_ms must be > 0")
	}

	if cfg.Audio.EnableMonitoring && cfg.Audio.MonitoringDevice == "" {
		warnings = append(warnings, Warning{Message: "audio.enable_monitoring is set without audio.monitoring_device; monitoring is skipped"})
	}

	names := make([]string, 0, len(cfg.Clicker.Actions))
	for name := range cfg.Clicker.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		action := cfg.Clicker.Actions[name]
		hasShortcut := action.Shortcut != ""
		hasCmd := len(action.Cmd.Argv) > 0
		if hasShortcut && hasCmd {
			return nil, fmt.Errorf("clicker.actions.%s must set only one of shortcut or cmd", name)
		}
		if !hasShortcut && !hasCmd {
			return nil, fmt.Errorf("clicker.actions.%s must set shortcut or cmd", name)
		}
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}

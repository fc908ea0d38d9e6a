// Package config resolves, parses, validates, and defaults promptvoice configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by promptvoice.
type Config struct {
	Engine          EngineConfig
	Capture         CaptureConfig
	Audio           AudioRoutingSpec
	Timing          TimingConfig
	Clicker         ClickerConfig
	Indicator       IndicatorConfig
	CredentialsPath string
	Debug           DebugConfig
}

// EngineConfig selects and tunes the speech backend.
//
// Rate is words per minute, Volume is in [0,1], and Pitch is a multiplier
// around 1.0. Extra carries backend-native parameters opaquely.
type EngineConfig struct {
	Backend     string
	Voice       string
	Rate        int
	Volume      float64
	Pitch       float64
	Extra       map[string]any
	Credentials map[string]Credential
}

// Credential is one backend's secret material.
type Credential struct {
	APIKey          string `yaml:"api_key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Empty reports whether no credential field is set.
func (c Credential) Empty() bool {
	return c == Credential{}
}

// CaptureRegion is the screen rectangle polled for prompt text.
type CaptureRegion struct {
	X      int
	Y      int
	Width  int
	Height int
}

// CaptureConfig controls where and how prompt text is read.
type CaptureConfig struct {
	Region      CaptureRegion
	WindowClass string
	OCR         CommandConfig
}

// AudioRoutingSpec describes the output devices narration should reach.
type AudioRoutingSpec struct {
	OutputDevice     string
	EnableMonitoring bool
	MonitoringDevice string
}

// TimingConfig controls loop pacing.
type TimingConfig struct {
	CheckInterval time.Duration
	RetryDelay    time.Duration
}

// ClickerConfig maps UI action names to how they are triggered.
type ClickerConfig struct {
	Actions map[string]ClickAction
}

// ClickAction is either a Hyprland shortcut or an external command.
type ClickAction struct {
	Shortcut string
	Cmd      CommandConfig
}

// IndicatorConfig controls optional desktop notifications for loop notices.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableGRPCDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

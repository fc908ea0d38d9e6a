package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty backend", mutate: func(c *Config) { c.Engine.Backend = " " }, wantErr: "tts.backend"},
		{name: "zero rate", mutate: func(c *Config) { c.Engine.Rate = 0 }, wantErr: "tts.rate"},
		{name: "volume above one", mutate: func(c *Config) { c.Engine.Volume = 1.5 }, wantErr: "tts.volume"},
		{name: "negative volume", mutate: func(c *Config) { c.Engine.Volume = -0.1 }, wantErr: "tts.volume"},
		{name: "zero pitch", mutate: func(c *Config) { c.Engine.Pitch = 0 }, wantErr: "tts.pitch"},
		{name: "negative region origin", mutate: func(c *Config) { c.Capture.Region.X = -1 }, wantErr: "capture.region"},
		{name: "empty region", mutate: func(c *Config) { c.Capture.Region.Height = 0 }, wantErr: "capture.region"},
		{name: "empty ocr argv", mutate: func(c *Config) { c.Capture.OCR.Argv = nil }, wantErr: "capture.ocr_cmd"},
		{name: "zero interval", mutate: func(c *Config) { c.Timing.CheckInterval = 0 }, wantErr: "check_interval"},
		{name: "zero retry", mutate: func(c *Config) { c.Timing.RetryDelay = 0 }, wantErr: "retry_delay"},
		{name: "bad indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "tray" }, wantErr: "indicator.backend"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
		{name: "action without trigger", mutate: func(c *Config) {
			c.Clicker.Actions["record"] = ClickAction{}
		}, wantErr: "clicker.actions.record"},
		{name: "action with both triggers", mutate: func(c *Config) {
			c.Clicker.Actions["record"] = ClickAction{Shortcut: "CTRL,R", Cmd: CommandConfig{Raw: "x", Argv: []string{"x"}}}
		}, wantErr: "only one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateMonitoringWithoutOutputWarns(t *testing.T) {
	cfg := Default()
	cfg.Audio = AudioRoutingSpec{EnableMonitoring: true, MonitoringDevice: "Headphones"}

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "output_device")
}

package config

import "time"

// DefaultBackend is the speech backend used when none is configured.
const DefaultBackend = "espeak"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Backend:     DefaultBackend,
			Rate:        175,
			Volume:      1.0,
			Pitch:       1.0,
			Extra:       map[string]any{},
			Credentials: map[string]Credential{},
		},
		Capture: CaptureConfig{
			Region: CaptureRegion{X: 400, Y: 400, Width: 600, Height: 60},
			OCR:    mustParseCommand("tesseract stdin stdout --psm 7 -l eng"),
		},
		Audio: AudioRoutingSpec{},
		Timing: TimingConfig{
			CheckInterval: 500 * time.Millisecond,
			RetryDelay:    time.Second,
		},
		Clicker: ClickerConfig{Actions: map[string]ClickAction{}},
		Indicator: IndicatorConfig{
			Enable:         false,
			Backend:        "hypr",
			DesktopAppName: "promptvoice",
			ErrorTimeoutMS: 1600,
		},
		Debug: DebugConfig{},
	}
}

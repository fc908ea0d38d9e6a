package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsoncConfig struct {
	TTS       *jsoncTTS       `json:"tts"`
	Capture   *jsoncCapture   `json:"capture"`
	Audio     *jsoncAudio     `json:"audio"`
	Timing    *jsoncTiming    `json:"timing"`
	Clicker   *jsoncClicker   `json:"clicker"`
	Indicator *jsoncIndicator `json:"indicator"`

	CredentialsPath *string     `json:"credentials_path"`
	Debug           *jsoncDebug `json:"debug"`
}

type jsoncTTS struct {
	Backend      *string        `json:"backend"`
	Voice        *string        `json:"voice"`
	Rate         *int           `json:"rate"`
	Volume       *float64       `json:"volume"`
	Pitch        *float64       `json:"pitch"`
	ExtraOptions map[string]any `json:"extra_options"`
}

type jsoncCapture struct {
	Region      *jsoncRegion `json:"region"`
	WindowClass *string      `json:"window_class"`
	OCRCmd      *string      `json:"ocr_cmd"`
}

type jsoncRegion struct {
	X      *int `json:"x"`
	Y      *int `json:"y"`
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

type jsoncAudio struct {
	OutputDevice     *string `json:"output_device"`
	EnableMonitoring *bool   `json:"enable_monitoring"`
	MonitoringDevice *string `json:"monitoring_device"`
}

type jsoncTiming struct {
	CheckIntervalMS *int `json:"check_interval_ms"`
	RetryDelayMS    *int `json:"retry_delay_ms"`
}

type jsoncClicker struct {
	Actions map[string]jsoncClickAction `json:"actions"`
}

type jsoncClickAction struct {
	Shortcut *string `json:"shortcut"`
	Cmd      *string `json:"cmd"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncDebug struct {
	GRPCDump *bool `json:"grpc_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base.Clone()
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if tts := payload.TTS; tts != nil {
		if tts.Backend != nil {
			cfg.Engine.Backend = strings.ToLower(strings.TrimSpace(*tts.Backend))
		}
		if tts.Voice != nil {
			cfg.Engine.Voice = strings.TrimSpace(*tts.Voice)
		}
		if tts.Rate != nil {
			cfg.Engine.Rate = *tts.Rate
		}
		if tts.Volume != nil {
			cfg.Engine.Volume = *tts.Volume
		}
		if tts.Pitch != nil {
			cfg.Engine.Pitch = *tts.Pitch
		}
		for key, value := range tts.ExtraOptions {
			key = strings.TrimSpace(key)
			if key == "" {
				warnings = append(warnings, Warning{Message: "tts.extra_options contains an empty key; ignoring"})
				continue
			}
			cfg.Engine.Extra[key] = value
		}
	}

	if capture := payload.Capture; capture != nil {
		if region := capture.Region; region != nil {
			if region.X != nil {
				cfg.Capture.Region.X = *region.X
			}
			if region.Y != nil {
				cfg.Capture.Region.Y = *region.Y
			}
			if region.Width != nil {
				cfg.Capture.Region.Width = *region.Width
			}
			if region.Height != nil {
				cfg.Capture.Region.Height = *region.Height
			}
		}
		if capture.WindowClass != nil {
			cfg.Capture.WindowClass = strings.TrimSpace(*capture.WindowClass)
		}
		if capture.OCRCmd != nil {
			cmd, err := ParseCommand(*capture.OCRCmd)
			if err != nil {
				return nil, fmt.Errorf("invalid capture.ocr_cmd: %w", err)
			}
			cfg.Capture.OCR = cmd
		}
	}

	if audio := payload.Audio; audio != nil {
		if audio.OutputDevice != nil {
			cfg.Audio.OutputDevice = strings.TrimSpace(*audio.OutputDevice)
		}
		if audio.EnableMonitoring != nil {
			cfg.Audio.EnableMonitoring = *audio.EnableMonitoring
		}
		if audio.MonitoringDevice != nil {
			cfg.Audio.MonitoringDevice = strings.TrimSpace(*audio.MonitoringDevice)
		}
	}

	if timing := payload.Timing; timing != nil {
		if timing.CheckIntervalMS != nil {
			cfg.Timing.CheckInterval = time.Duration(*timing.CheckIntervalMS) * time.Millisecond
		}
		if timing.RetryDelayMS != nil {
			cfg.Timing.RetryDelay = time.Duration(*timing.RetryDelayMS) * time.Millisecond
		}
	}

	if payload.Clicker != nil {
		for name, action := range payload.Clicker.Actions {
			trimmedName := strings.TrimSpace(name)
			if trimmedName == "" {
				return nil, fmt.Errorf("clicker.actions contains an empty action name")
			}

			entry := ClickAction{}
			if action.Shortcut != nil {
				entry.Shortcut = strings.TrimSpace(*action.Shortcut)
			}
			if action.Cmd != nil {
				cmd, err := ParseCommand(*action.Cmd)
				if err != nil {
					return nil, fmt.Errorf("invalid clicker.actions.%s.cmd: %w", trimmedName, err)
				}
				entry.Cmd = cmd
			}
			cfg.Clicker.Actions[trimmedName] = entry
		}
	}

	if indicator := payload.Indicator; indicator != nil {
		if indicator.Enable != nil {
			cfg.Indicator.Enable = *indicator.Enable
		}
		if indicator.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*indicator.Backend)
		}
		if indicator.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*indicator.DesktopAppName)
		}
		if indicator.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *indicator.ErrorTimeoutMS
		}
	}

	if payload.CredentialsPath != nil {
		cfg.CredentialsPath = strings.TrimSpace(*payload.CredentialsPath)
	}

	if payload.Debug != nil && payload.Debug.GRPCDump != nil {
		cfg.Debug.EnableGRPCDump = *payload.Debug.GRPCDump
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

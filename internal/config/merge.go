package config

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// ExtraEngineType is the Extra key naming the backend that consumes the options.
const ExtraEngineType = "engine_type"

// Clone returns a copy of cfg whose maps can be mutated independently.
func (cfg Config) Clone() Config {
	out := cfg
	out.Engine = cfg.Engine.Clone()
	out.Capture.OCR.Argv = append([]string(nil), cfg.Capture.OCR.Argv...)
	out.Clicker.Actions = make(map[string]ClickAction, len(cfg.Clicker.Actions))
	for name, action := range cfg.Clicker.Actions {
		action.Cmd.Argv = append([]string(nil), action.Cmd.Argv...)
		out.Clicker.Actions[name] = action
	}
	return out
}

// Clone returns a copy of e whose Extra and Credentials maps are independent.
func (e EngineConfig) Clone() EngineConfig {
	out := e
	out.Extra = make(map[string]any, len(e.Extra))
	maps.Copy(out.Extra, e.Extra)
	out.Credentials = make(map[string]Credential, len(e.Credentials))
	maps.Copy(out.Credentials, e.Credentials)
	return out
}

// WithOverrides layers overrides on top of Extra. Override keys always win.
func (e EngineConfig) WithOverrides(overrides map[string]any) EngineConfig {
	out := e.Clone()
	maps.Copy(out.Extra, overrides)
	return out
}

// WithDefaults fills Extra keys the user has not set explicitly.
func (e EngineConfig) WithDefaults(defaults map[string]any) EngineConfig {
	out := e.Clone()
	for key, value := range defaults {
		if _, ok := out.Extra[key]; ok {
			continue
		}
		out.Extra[key] = value
	}
	return out
}

// Credential returns the record for backend, matched case-insensitively.
func (e EngineConfig) Credential(backend string) Credential {
	return e.Credentials[strings.ToLower(strings.TrimSpace(backend))]
}

// ExtraString reads a string option, formatting scalars when needed.
func (e EngineConfig) ExtraString(key string) string {
	value, ok := e.Extra[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// ExtraFloat reads a numeric option. ok is false when the key is absent or not numeric.
func (e EngineConfig) ExtraFloat(key string) (float64, bool) {
	value, ok := e.Extra[key]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

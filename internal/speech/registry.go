package speech

import (
	"sort"
	"strings"

	"github.com/rbright/promptvoice/internal/config"
)

type registration struct {
	// native translates generic rate/volume/pitch/voice into backend option keys.
	native func(cfg config.EngineConfig) map[string]any
	// credentials lists the credential fields construction requires.
	credentials []string
	build       func(name string, cfg config.EngineConfig, deps Deps) (Backend, error)
}

var registry = map[string]registration{
	"say":        {native: noNativeParams, build: newSayBackend},
	"macos":      {native: noNativeParams, build: newSayBackend},
	"espeak":     {native: espeakParams, build: newEspeakBackend},
	"elevenlabs": {native: elevenLabsParams, credentials: []string{"api_key"}, build: newElevenLabsBackend},
	"openai":     {native: openAIParams, credentials: []string{"api_key"}, build: newOpenAIBackend},
	"google":     {native: googleParams, build: newGoogleBackend},
	"azure":      {native: azureParams, credentials: []string{"api_key", "region"}, build: newAzureBackend},
}

// Names lists registered backend names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns cfg as the named backend will see it: derived native
// options filled in where unset and engine_type forced to the backend name.
func Resolve(name string, cfg config.EngineConfig) (config.EngineConfig, error) {
	key, reg, err := lookup(name)
	if err != nil {
		return config.EngineConfig{}, err
	}
	return resolveWith(key, reg, cfg), nil
}

// Create builds the named backend from cfg.
//
// Unknown names yield *NotFoundError and missing required credentials yield
// *CredentialsError.
func Create(name string, cfg config.EngineConfig, deps Deps) (Backend, error) {
	key, reg, err := lookup(name)
	if err != nil {
		return nil, err
	}

	resolved := resolveWith(key, reg, cfg)
	if missing := missingCredentials(resolved.Credential(key), reg.credentials); len(missing) > 0 {
		return nil, &CredentialsError{Backend: key, Missing: missing}
	}
	return reg.build(key, resolved, deps)
}

func lookup(name string) (string, registration, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	reg, ok := registry[key]
	if !ok {
		return "", registration{}, &NotFoundError{Name: name}
	}
	return key, reg, nil
}

func resolveWith(key string, reg registration, cfg config.EngineConfig) config.EngineConfig {
	return cfg.WithDefaults(reg.native(cfg)).WithOverrides(map[string]any{config.ExtraEngineType: key})
}

func missingCredentials(cred config.Credential, required []string) []string {
	var missing []string
	for _, field := range required {
		var value string
		switch field {
		case "api_key":
			value = cred.APIKey
		case "region":
			value = cred.Region
		case "endpoint":
			value = cred.Endpoint
		case "credentials_file":
			value = cred.CredentialsFile
		}
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

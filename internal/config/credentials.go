package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type envCredentials struct {
	ElevenLabsAPIKey  string `env:"ELEVENLABS_API_KEY"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL"`
	AzureSpeechKey    string `env:"AZURE_SPEECH_KEY"`
	AzureSpeechRegion string `env:"AZURE_SPEECH_REGION"`
	GoogleCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// LoadCredentials reads the credentials document at path and overlays
// environment overrides.
//
// Failures never propagate: a broken document yields a warning and the
// environment-only credentials.
func LoadCredentials(path string, environ []string) (map[string]Credential, []Warning) {
	warnings := make([]Warning, 0)

	creds, err := readCredentialsFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		creds = map[string]Credential{}
	case err != nil:
		warnings = append(warnings, Warning{Message: fmt.Sprintf("credentials %q ignored: %v", path, err)})
		creds = map[string]Credential{}
	default:
		if info, statErr := os.Stat(path); statErr == nil && info.Mode().Perm()&0o077 != 0 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("credentials %q is readable by other users; chmod 600 recommended", path)})
		}
	}

	overrides, envWarnings := parseEnvCredentials(filepath.Join(filepath.Dir(path), dotenvFileName), environ)
	warnings = append(warnings, envWarnings...)
	applyEnvCredentials(creds, overrides)

	return creds, warnings
}

func readCredentialsFile(path string) (map[string]Credential, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCredentials(content)
}

func parseCredentials(content []byte) (map[string]Credential, error) {
	raw := make(map[string]Credential)
	if len(bytes.TrimSpace(content)) == 0 {
		return raw, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	creds := make(map[string]Credential, len(raw))
	for name, cred := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("parse credentials: empty backend name")
		}
		creds[name] = Credential{
			APIKey:          strings.TrimSpace(cred.APIKey),
			Region:          strings.TrimSpace(cred.Region),
			Endpoint:        strings.TrimSpace(cred.Endpoint),
			CredentialsFile: strings.TrimSpace(cred.CredentialsFile),
		}
	}
	return creds, nil
}

func parseEnvCredentials(dotenvPath string, environ []string) (envCredentials, []Warning) {
	var warnings []Warning

	merged := map[string]string{}
	dotenv, err := godotenv.Read(dotenvPath)
	switch {
	case err == nil:
		merged = dotenv
	case !errors.Is(err, os.ErrNotExist):
		warnings = append(warnings, Warning{Message: fmt.Sprintf("dotenv %q ignored: %v", dotenvPath, err)})
	}
	for key, value := range env.ToMap(environ) {
		merged[key] = value
	}

	parsed, err := env.ParseAsWithOptions[envCredentials](env.Options{Environment: merged})
	if err != nil {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("credential environment ignored: %v", err)})
		return envCredentials{}, warnings
	}
	return parsed, warnings
}

func applyEnvCredentials(creds map[string]Credential, overrides envCredentials) {
	set := func(name string, mutate func(*Credential)) {
		cred := creds[name]
		mutate(&cred)
		if !cred.Empty() {
			creds[name] = cred
		}
	}

	set("elevenlabs", func(c *Credential) {
		if overrides.ElevenLabsAPIKey != "" {
			c.APIKey = overrides.ElevenLabsAPIKey
		}
	})
	set("openai", func(c *Credential) {
		if overrides.OpenAIAPIKey != "" {
			c.APIKey = overrides.OpenAIAPIKey
		}
		if overrides.OpenAIBaseURL != "" {
			c.Endpoint = overrides.OpenAIBaseURL
		}
	})
	set("azure", func(c *Credential) {
		if overrides.AzureSpeechKey != "" {
			c.APIKey = overrides.AzureSpeechKey
		}
		if overrides.AzureSpeechRegion != "" {
			c.Region = overrides.AzureSpeechRegion
		}
	})
	set("google", func(c *Credential) {
		if overrides.GoogleCredentials != "" && c.CredentialsFile == "" {
			c.CredentialsFile = overrides.GoogleCredentials
		}
	})
}

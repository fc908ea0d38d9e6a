package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName          = "promptvoice"
	configFileName      = "config.jsonc"
	credentialsFileName = "credentials.yaml"
	dotenvFileName      = ".env"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ResolveCredentialsPath picks the credentials document location.
//
// An explicit path wins, then the config's credentials_path, then
// credentials.yaml next to the main config file.
func ResolveCredentialsPath(explicit string, cfg Config, configPath string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if strings.TrimSpace(cfg.CredentialsPath) != "" {
		return expandHome(cfg.CredentialsPath)
	}
	return filepath.Join(filepath.Dir(configPath), credentialsFileName)
}

func configDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", appDirName), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved paths, parsed values, and non-fatal warnings.
type Loaded struct {
	Path            string
	CredentialsPath string
	Config          Config
	Warnings        []Warning
	Exists          bool
}

// Load resolves, reads, parses, and validates the runtime configuration, then
// attaches credentials.
//
// A missing, unreadable, or invalid main file degrades to Default() with a
// warning. Credentials are loaded independently of the main file's outcome.
// Only an unresolvable config location is an error.
func Load(explicitPath string, explicitCredentials string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		loaded.Exists = true
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("read config %q: %v; using defaults", resolvedPath, err),
		})
	default:
		loaded.Exists = true
		cfg, warnings, parseErr := Parse(string(content), Default())
		if parseErr != nil {
			loaded.Warnings = append(loaded.Warnings, Warning{
				Message: fmt.Sprintf("parse config %q: %v; using defaults", resolvedPath, parseErr),
			})
			break
		}
		loaded.Config = cfg
		loaded.Warnings = append(loaded.Warnings, warnings...)
	}

	loaded.CredentialsPath = ResolveCredentialsPath(explicitCredentials, loaded.Config, resolvedPath)
	creds, credWarnings := LoadCredentials(loaded.CredentialsPath, os.Environ())
	loaded.Config.Engine.Credentials = creds
	loaded.Warnings = append(loaded.Warnings, credWarnings...)

	return loaded, nil
}

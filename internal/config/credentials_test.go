package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var credentialEnvKeys = []string{
	"ELEVENLABS_API_KEY",
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"AZURE_SPEECH_KEY",
	"AZURE_SPEECH_REGION",
	"GOOGLE_APPLICATION_CREDENTIALS",
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range credentialEnvKeys {
		t.Setenv(key, "")
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}

func TestLoadCredentialsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Azure:
  api_key: " az-key "
  region: westeurope
elevenlabs:
  api_key: el-key
`), 0o600))

	creds, warnings := LoadCredentials(path, nil)
	require.Empty(t, warnings)
	require.Equal(t, Credential{APIKey: "az-key", Region: "westeurope"}, creds["azure"])
	require.Equal(t, "el-key", creds["elevenlabs"].APIKey)
}

func TestLoadCredentialsMissingFileIsSilent(t *testing.T) {
	creds, warnings := LoadCredentials(filepath.Join(t.TempDir(), "credentials.yaml"), nil)
	require.Empty(t, warnings)
	require.Empty(t, creds)
}

func TestLoadCredentialsUnknownFieldWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  apikey: typo\n"), 0o600))

	creds, warnings := LoadCredentials(path, nil)
	require.Empty(t, creds)
	require.Len(t, warnings, 1)
	require.True(t, containsAll(warnings[0].Message, path, "ignored"))
}

func TestLoadCredentialsWarnsOnOpenPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  api_key: k\n"), 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	_, warnings := LoadCredentials(path, nil)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "chmod 600")
}

func TestLoadCredentialsEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("azure:\n  api_key: file-key\n  region: eastus\n"), 0o600))

	creds, warnings := LoadCredentials(path, []string{
		"AZURE_SPEECH_KEY=env-key",
		"OPENAI_API_KEY=sk-env",
		"UNRELATED=1",
	})
	require.Empty(t, warnings)
	require.Equal(t, Credential{APIKey: "env-key", Region: "eastus"}, creds["azure"])
	require.Equal(t, "sk-env", creds["openai"].APIKey)
	_, hasElevenLabs := creds["elevenlabs"]
	require.False(t, hasElevenLabs)
}

func TestLoadCredentialsDotenvBelowProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ELEVENLABS_API_KEY=from-dotenv\nOPENAI_API_KEY=from-dotenv\n"), 0o600))

	creds, warnings := LoadCredentials(filepath.Join(dir, "credentials.yaml"), []string{"OPENAI_API_KEY=from-env"})
	require.Empty(t, warnings)
	require.Equal(t, "from-dotenv", creds["elevenlabs"].APIKey)
	require.Equal(t, "from-env", creds["openai"].APIKey)
}

func TestLoadCredentialsGoogleFileFromEnvironment(t *testing.T) {
	creds, _ := LoadCredentials(filepath.Join(t.TempDir(), "credentials.yaml"), []string{"GOOGLE_APPLICATION_CREDENTIALS=/keys/sa.json"})
	require.Equal(t, "/keys/sa.json", creds["google"].CredentialsFile)
}

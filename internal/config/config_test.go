package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "INBOX_API_URL", "INBOX_API_TOKEN", "INBOX_PUSH_URL", "DATABASE_URL", "POLL_INTERVAL", "LOG_DEV"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.False(t, cfg.LogDev)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
port: "9090"
api_url: https://api.example.com
push_url: wss://api.example.com/push
poll_interval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "wss://api.example.com/push", cfg.PushURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`api_url: https://file.example.com`), 0o644))

	t.Setenv("INBOX_API_URL", "https://env.example.com")
	t.Setenv("INBOX_PUSH_URL", "wss://env.example.com/push")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("LOG_DEV", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.APIURL)
	assert.Equal(t, "wss://env.example.com/push", cfg.PushURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.True(t, cfg.LogDev)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestBadYAMLIsAnError(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestNonPositivePollIntervalIsReset(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval: 0s"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
}

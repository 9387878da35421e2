package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://perks.example.com\nlog_level: debug\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://perks.example.com", cfg.BaseURL)
	require.Equal(t, "debug", cfg.LogLevel)

	// untouched keys keep their defaults
	require.Equal(t, "membersdk.db", cfg.DatabaseFile)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://from-file.example.com\n"), 0o600))

	t.Setenv("MEMBERSDK_BASE_URL", "https://from-env.example.com")
	t.Setenv("MEMBERSDK_CONSUMER_KEY", "ck_env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://from-env.example.com", cfg.BaseURL)
	require.Equal(t, "ck_env", cfg.ConsumerKey)
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "base_url is required")
}

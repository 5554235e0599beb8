package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drvillela/expediente/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunCreatesLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	require.DirExists(t, cfg.DraftsDir())
	require.DirExists(t, cfg.LogsDir())
	require.FileExists(t, filepath.Join(dir, "config.yaml"))

	require.Equal(t, "http://localhost:8750", cfg.Server.BaseURL)
	require.Equal(t, 15*time.Second, cfg.Timeout())
	require.Equal(t, time.Second, cfg.AutosaveInterval())
	require.Equal(t, 4194304, cfg.Images.MaxBytes)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMergesUserOverrides(t *testing.T) {
	dir := t.TempDir()
	custom := `version: 1
server:
  base_url: https://clinica.example.com
autosave:
  interval_ms: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(custom), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "https://clinica.example.com", cfg.Server.BaseURL)
	require.Equal(t, 250*time.Millisecond, cfg.AutosaveInterval())
	// Fields the user left out keep their defaults.
	require.Equal(t, 4194304, cfg.Images.MaxBytes)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: ["), 0o644))
	_, err := config.Load(dir)
	require.Error(t, err)
}

func TestFallbacksForNonPositiveDurations(t *testing.T) {
	dir := t.TempDir()
	custom := `server:
  timeout_seconds: 0
autosave:
  interval_ms: -5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(custom), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, cfg.Timeout())
	require.Equal(t, time.Second, cfg.AutosaveInterval())
}

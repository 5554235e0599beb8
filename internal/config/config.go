// internal/config/config.go
//
// Configuration and the ~/.expediente data directory. Drafts, logs, and the
// YAML config file all live under the data dir so a workstation keeps its
// unsaved work between sessions.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DataDirName is the directory created under the user's home.
const DataDirName = ".expediente"

const defaultConfigYAML = `# expediente configuration
version: 1

server:
  base_url: http://localhost:8750
  timeout_seconds: 15

autosave:
  interval_ms: 1000

images:
  max_bytes: 4194304

log_level: info
`

// ServerConfig holds persistence API settings.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AutosaveConfig holds draft engine settings.
type AutosaveConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// ImagesConfig holds attachment limits.
type ImagesConfig struct {
	MaxBytes int `yaml:"max_bytes"`
}

// Config is the runtime configuration for the editor.
type Config struct {
	Version  int            `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Images   ImagesConfig   `yaml:"images"`
	LogLevel string         `yaml:"log_level"`

	// DataDir is resolved at load time, not stored in the file.
	DataDir string `yaml:"-"`
}

// Timeout returns the API request timeout.
func (c *Config) Timeout() time.Duration {
	if c.Server.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// AutosaveInterval returns the debounce quiet interval.
func (c *Config) AutosaveInterval() time.Duration {
	if c.Autosave.IntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.Autosave.IntervalMS) * time.Millisecond
}

// DraftsDir returns the directory holding draft files.
func (c *Config) DraftsDir() string {
	return filepath.Join(c.DataDir, "drafts")
}

// LogsDir returns the directory holding log files.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func defaultConfig() Config {
	var cfg Config
	// The default literal is the source of truth; a decode failure here is
	// a programming error.
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default config: %v", err))
	}
	return cfg
}

// DefaultDataDir resolves ~/.expediente.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, DataDirName), nil
}

// Load reads config.yaml from the data dir, creating the directory layout
// and a default config file on first run. An empty dataDir resolves to
// ~/.expediente.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		resolved, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = resolved
	}
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "drafts"), filepath.Join(dataDir, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}

	path := filepath.Join(dataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if writeErr := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); writeErr != nil {
			return nil, fmt.Errorf("config: write default %s: %w", path, writeErr)
		}
		data = []byte(defaultConfigYAML)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.DataDir = dataDir
	return &cfg, nil
}

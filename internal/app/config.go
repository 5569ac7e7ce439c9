package app

import (
	"os"
	"path/filepath"

	"github.com/terakael/flowrs/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is the server file; config.DefaultPath() when empty.
	ConfigPath string

	// StateDir holds debug logs and the log cache.
	StateDir string

	Settings config.Settings
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, settings config.Settings) *Config {
	return &Config{
		ConfigPath: configPath,
		StateDir:   DefaultStateDir(),
		Settings:   settings,
	}
}

// DefaultStateDir is $XDG_STATE_HOME/flowrs, falling back to
// ~/.local/state/flowrs and then the temp dir.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "flowrs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "flowrs")
	}
	return filepath.Join(home, ".local", "state", "flowrs")
}

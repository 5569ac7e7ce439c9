package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/terakael/flowrs/internal/cache"
	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/internal/managed"
	"github.com/terakael/flowrs/pkg/logging"
)

// debugLogRetention is how long debug log files are kept.
const debugLogRetention = 7 * 24 * time.Hour

// Application is the main application structure that bootstraps and runs flowrs
type Application struct {
	config *Config
	store  *config.Store
	cache  *cache.LogCache
}

// NewApplication loads the server file, discovers managed servers and opens
// the log cache. Logging goes to a file from here on, since the terminal
// belongs to the UI.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	level, ok := logging.ParseLevel(cfg.Settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	if cfg.Settings.Debug {
		level = logging.LevelDebug
	}
	path, err := logging.InitForTUI(level, cfg.StateDir, cfg.Settings.Debug)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logging.Info("Bootstrap", "writing debug log to %s", path)
	}
	if n, err := logging.PruneLogFiles(cfg.StateDir, debugLogRetention, time.Now()); err != nil {
		logging.Warn("Bootstrap", "pruning debug logs: %v", err)
	} else if n > 0 {
		logging.Debug("Bootstrap", "removed %d old debug logs", n)
	}

	configPath, err := config.ResolvePath(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to locate server configuration")
		return nil, fmt.Errorf("failed to locate server configuration: %w", err)
	}
	store, err := config.Load(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load server configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}
	if err := store.Discover(ctx, managed.Discoverers()); err != nil {
		// Servers from the other services and the file stay usable.
		logging.Warn("Bootstrap", "managed service discovery: %v", err)
	}

	logCache, err := cache.Open(ctx, filepath.Join(cfg.StateDir, "logs.db"))
	if err != nil {
		logging.Warn("Bootstrap", "log cache disabled: %v", err)
		logCache = nil
	} else if n, err := logCache.Prune(ctx, cfg.Settings.LogCacheTTL()); err != nil {
		logging.Warn("Bootstrap", "pruning log cache: %v", err)
	} else if n > 0 {
		logging.Debug("Bootstrap", "pruned %d cached logs", n)
	}

	return &Application{config: cfg, store: store, cache: logCache}, nil
}

// Run executes the terminal UI until the user quits.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()
	return runTUIMode(ctx, a.config, a.store, a.cache)
}

func (a *Application) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logging.Warn("Bootstrap", "closing log cache: %v", err)
		}
	}
	logging.Close()
}

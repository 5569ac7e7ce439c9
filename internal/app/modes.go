package app

import (
	"context"

	"github.com/terakael/flowrs/internal/cache"
	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/internal/tui/controller"
	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/worker"
	"github.com/terakael/flowrs/pkg/logging"
)

// runTUIMode executes the interactive terminal UI mode
func runTUIMode(ctx context.Context, cfg *Config, store *config.Store, logCache *cache.LogCache) error {
	logging.Info("TUI-Lifecycle", "Starting TUI mode with %d servers", len(store.Servers()))
	design.Initialize(true)

	initialActive := store.ActiveServer()
	var opts []worker.Option
	if logCache != nil {
		opts = append(opts, worker.WithLogCache(logCache))
	}
	term := controller.NewTerminal()
	opts = append(opts, worker.WithEditor(term.Edit))
	services := InitializeServices(cfg.Settings, store, term, worker.HTTPClientFactory, opts...)
	runErr := services.Run(ctx)
	if runErr != nil {
		logging.Error("TUI-Lifecycle", runErr, "Error running TUI")
	}

	if store.ActiveServer() != initialActive {
		if err := store.Save(); err != nil {
			logging.Error("TUI-Lifecycle", err, "Failed to save active server")
			if runErr == nil {
				return err
			}
		}
	}
	logging.Info("TUI-Lifecycle", "TUI exited.")
	return runErr
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terakael/flowrs/internal/mcpserver"
	"github.com/terakael/flowrs/internal/worker"
	"github.com/terakael/flowrs/pkg/logging"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only Airflow tools over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
configured Airflow servers to assistants:

  list_servers, list_jobs, list_job_runs, list_task_instances, get_task_logs

Logs are written to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	level, ok := logging.ParseLevel(settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logging.InitForCLI(level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := store.Discover(ctx, discoverers()); err != nil {
		logging.Warn("MCP", "managed service discovery: %v", err)
	}

	srv := mcpserver.New(store, worker.HTTPClientFactory, rootCmd.Version)
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

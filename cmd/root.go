package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terakael/flowrs/internal/app"
	"github.com/terakael/flowrs/internal/config"
)

// configPath overrides FLOWRS_CONFIG_PATH and the default locations.
var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowrs",
	Short: "A terminal UI for Apache Airflow",
	Long: `flowrs lets you browse DAGs, runs, task instances and logs of one or
more Airflow servers from the terminal, and trigger, clear or mark runs
and tasks without leaving it.

Servers are read from $FLOWRS_CONFIG_PATH, ~/.config/flowrs/config.toml or
~/.flowrs; manage them with 'flowrs config'.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. unreachable servers, invalid configuration)
	SilenceUsage: true,
	RunE:         runTUI,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "flowrs version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Server configuration file (default $FLOWRS_CONFIG_PATH or ~/.flowrs)")
	def := config.DefaultSettings()
	flags.Duration("tick-interval", def.TickInterval, "How often the UI refreshes without input")
	flags.Int("queue-capacity", def.QueueCapacity, "Pending command limit; 0 is unbounded")
	flags.Duration("request-timeout", def.RequestTimeout, "Timeout of each Airflow API call")
	flags.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	flags.Int("log-cache-days", def.LogCacheDays, "Days to keep cached task logs; 0 disables the cache")
	flags.Bool("debug", false, "Write a debug log to the state directory")
}

// newRunCmd is the explicit form of the root command.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the terminal UI (default command)",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
}

// loadSettings reads runtime settings from flags, FLOWRS_* and defaults.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return config.Settings{}, err
	}
	return config.LoadSettings(v)
}

// loadStore reads the server file selected by --config.
func loadStore() (*config.Store, error) {
	path, err := config.ResolvePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("locating server configuration: %w", err)
	}
	return config.Load(path)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, app.NewConfig(configPath, settings))
	if err != nil {
		return fmt.Errorf("starting flowrs: %w", err)
	}
	return application.Run(ctx)
}

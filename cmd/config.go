package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/internal/managed"
)

var configOutputFormat string

// serverFlags are shared by config add and config update.
type serverFlags struct {
	endpoint string
	version  string
	proxy    string
	timeout  time.Duration
	username string
	password string
	token    string
	tokenCmd string
}

var (
	addFlags    serverFlags
	updateFlags serverFlags
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Airflow server configuration",
	Long: `Manage the Airflow servers flowrs connects to.

Available commands:
  add      - Add a server
  list     - List configured and discovered servers
  remove   - Remove a server
  update   - Change a server
  enable   - Discover servers from a managed service
  disable  - Stop discovering servers from a managed service`,
}

var configAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an Airflow server",
	Long: `Add an Airflow server to the configuration file.

Use either --username/--password, --token or --token-cmd for
authentication. Values may reference environment variables as ${VAR};
they are expanded when flowrs connects, not when they are stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAdd,
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List Airflow servers",
	Long: `List configured servers and servers discovered from enabled managed
services. Secrets are never printed.`,
	Args: cobra.NoArgs,
	RunE: runConfigList,
}

var configRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove an Airflow server",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigRemove,
}

var configUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Change an Airflow server",
	Long: `Change the fields given as flags and keep the others. Setting any
authentication flag replaces the previous authentication method.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigUpdate,
}

var configEnableCmd = &cobra.Command{
	Use:       "enable <service>",
	Short:     "Enable a managed service",
	Long:      "Enable server discovery for a managed service: " + strings.Join(config.SupportedServices, ", ") + ".",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.SupportedServices,
	RunE:      runConfigEnable,
}

var configDisableCmd = &cobra.Command{
	Use:       "disable <service>",
	Short:     "Disable a managed service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.SupportedServices,
	RunE:      runConfigDisable,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configUpdateCmd)
	configCmd.AddCommand(configEnableCmd)
	configCmd.AddCommand(configDisableCmd)

	bindServerFlags(configAddCmd, &addFlags)
	_ = configAddCmd.MarkFlagRequired("endpoint")
	bindServerFlags(configUpdateCmd, &updateFlags)

	configListCmd.Flags().StringVarP(&configOutputFormat, "output", "o", "table", "Output format (table, yaml)")
}

func bindServerFlags(cmd *cobra.Command, f *serverFlags) {
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Base URL of the Airflow webserver, e.g. https://airflow.example.com")
	cmd.Flags().StringVar(&f.version, "api-version", "v1", "REST API version: v1 (Airflow 2) or v2 (Airflow 3)")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "HTTP proxy URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per request timeout")
	cmd.Flags().StringVar(&f.username, "username", "", "Basic auth username")
	cmd.Flags().StringVar(&f.password, "password", "", "Basic auth password")
	cmd.Flags().StringVar(&f.token, "token", "", "Static bearer token")
	cmd.Flags().StringVar(&f.tokenCmd, "token-cmd", "", "Shell command printing a bearer token")
	cmd.MarkFlagsMutuallyExclusive("username", "token", "token-cmd")
	cmd.MarkFlagsMutuallyExclusive("password", "token", "token-cmd")
	cmd.MarkFlagsRequiredTogether("username", "password")
}

func (f serverFlags) auth() config.Auth {
	switch {
	case f.username != "":
		return config.Auth{Basic: &config.BasicAuth{Username: f.username, Password: f.password}}
	case f.tokenCmd != "":
		return config.Auth{Token: &config.TokenAuth{Cmd: f.tokenCmd}}
	case f.token != "":
		return config.Auth{Token: &config.TokenAuth{Token: f.token}}
	default:
		return config.Auth{}
	}
}

func checkAPIVersion(v string) (string, error) {
	parsed, err := airflow.ParseVersion(v)
	if err != nil {
		return "", err
	}
	return string(parsed), nil
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	version, err := checkAPIVersion(addFlags.version)
	if err != nil {
		return err
	}
	srv := config.Server{
		Name:     args[0],
		Endpoint: addFlags.endpoint,
		Version:  version,
		Proxy:    addFlags.proxy,
		Timeout:  config.Duration{Duration: addFlags.timeout},
		Auth:     addFlags.auth(),
	}
	if err := store.AddServer(srv); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added server %s to %s\n", srv.Name, store.Path())
	return nil
}

func runConfigUpdate(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	var srv config.Server
	found := false
	for _, s := range store.Configured() {
		if s.Name == args[0] {
			srv, found = s, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", config.ErrServerNotFound, args[0])
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		srv.Endpoint = updateFlags.endpoint
	}
	if flags.Changed("api-version") {
		if srv.Version, err = checkAPIVersion(updateFlags.version); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		srv.Proxy = updateFlags.proxy
	}
	if flags.Changed("timeout") {
		srv.Timeout = config.Duration{Duration: updateFlags.timeout}
	}
	if flags.Changed("username") || flags.Changed("token") || flags.Changed("token-cmd") {
		srv.Auth = updateFlags.auth()
	}

	if err := store.UpdateServer(srv); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated server %s\n", srv.Name)
	return nil
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := store.RemoveServer(args[0]); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed server %s\n", args[0])
	return nil
}

func runConfigEnable(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := store.EnableManaged(args[0]); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enabled managed service %s\n", args[0])
	return nil
}

func runConfigDisable(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := store.DisableManaged(args[0]); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Disabled managed service %s\n", args[0])
	return nil
}

// discoverers is replaced in tests.
var discoverers = managed.Discoverers

func runConfigList(cmd *cobra.Command, _ []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := store.Discover(cmd.Context(), discoverers()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	servers := store.Servers()
	redacted := make([]config.Server, len(servers))
	for i, srv := range servers {
		redacted[i] = srv.Redacted()
	}

	switch configOutputFormat {
	case "yaml":
		return writeYAML(cmd.OutOrStdout(), config.File{
			ActiveServer:    store.ActiveServer(),
			ManagedServices: store.ManagedServices(),
			Servers:         redacted,
		})
	case "table", "":
		fmt.Fprintln(cmd.OutOrStdout(), serverTable(redacted, store.ActiveServer()))
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table or yaml)", configOutputFormat)
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func serverTable(servers []config.Server, active string) string {
	if len(servers) == 0 {
		return "No servers configured. Add one with 'flowrs config add'."
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "NAME", "ENDPOINT", "VERSION", "AUTH", "SOURCE")
	for _, srv := range servers {
		marker := ""
		if srv.Name == active {
			marker = "*"
		}
		source := "config"
		if srv.Managed != "" {
			source = srv.Managed
		}
		version := srv.Version
		if version == "" {
			version = string(airflow.V1)
		}
		t.Row(marker, srv.Name, srv.Endpoint, version, srv.AuthMethod(), source)
	}
	return t.Render()
}

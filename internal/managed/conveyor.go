package managed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/pkg/logging"
)

const (
	conveyorDefaultAPI = "https://app.conveyordata.com"
	conveyorTokenCmd   = "conveyor auth get --quiet"
)

// Conveyor lists the environments of the logged in Conveyor tenant.
type Conveyor struct {
	// run executes the conveyor CLI and returns its standard output.
	run  func(ctx context.Context, args ...string) ([]byte, error)
	home func() (string, error)
}

// NewConveyor returns a discoverer backed by the conveyor binary on PATH.
func NewConveyor() *Conveyor {
	return &Conveyor{run: runConveyor, home: os.UserHomeDir}
}

type conveyorEnvironment struct {
	Name           string `json:"name"`
	ClusterName    string `json:"clusterName"`
	TenantID       string `json:"tenantId"`
	AirflowVersion string `json:"airflowVersion"`
}

// Discover implements config.Discoverer.
func (c *Conveyor) Discover(ctx context.Context) ([]config.Server, error) {
	// Fails early with a useful message when the user is not logged in.
	if _, err := c.run(ctx, "auth", "get", "--quiet"); err != nil {
		return nil, fmt.Errorf("conveyor authentication: %w", err)
	}
	out, err := c.run(ctx, "environment", "list", "-o", "json")
	if err != nil {
		return nil, fmt.Errorf("listing conveyor environments: %w", err)
	}
	var envs []conveyorEnvironment
	if err := json.Unmarshal(out, &envs); err != nil {
		return nil, fmt.Errorf("parsing conveyor environments: %w", err)
	}
	api, err := c.apiEndpoint()
	if err != nil {
		return nil, err
	}

	servers := make([]config.Server, 0, len(envs))
	for _, env := range envs {
		version := "v1"
		if env.AirflowVersion == "AirflowVersion_V3" {
			version = "v2"
		}
		servers = append(servers, config.Server{
			Name:     env.Name,
			Endpoint: fmt.Sprintf("%s/environments/%s/airflow/", strings.TrimRight(api, "/"), env.Name),
			Version:  version,
			Auth:     config.Auth{Token: &config.TokenAuth{Cmd: conveyorTokenCmd}},
		})
	}
	logging.Info("Managed", "found %d conveyor environments", len(servers))
	return servers, nil
}

// apiEndpoint reads the API of the active profile from
// ~/.conveyor/profiles.toml.
func (c *Conveyor) apiEndpoint() (string, error) {
	home, err := c.home()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	path := filepath.Join(home, ".conveyor", "profiles.toml")
	var profiles map[string]any
	if _, err := toml.DecodeFile(path, &profiles); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conveyorDefaultAPI, nil
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	active, _ := profiles["activeprofile"].(string)
	if active == "" || active == "default" {
		return conveyorDefaultAPI, nil
	}
	profile, ok := profiles[active].(map[string]any)
	if !ok {
		return "", fmt.Errorf("active conveyor profile %q not found in %s", active, path)
	}
	api, _ := profile["api"].(string)
	if api == "" {
		return "", fmt.Errorf("conveyor profile %q has no api", active)
	}
	return api, nil
}

func runConveyor(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "conveyor", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, errors.New(strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/terakael/flowrs/pkg/logging"
)

var (
	ErrServerNotFound     = errors.New("server not found")
	ErrServerExists       = errors.New("server already exists")
	ErrUnknownService     = errors.New("unknown managed service")
	ErrUnsupportedService = errors.New("managed service is not supported by this build")
)

// Managed service names accepted in managed_services.
const (
	ServiceConveyor   = "conveyor"
	ServiceAstronomer = "astronomer"
	ServiceKubernetes = "kubernetes"
	ServiceMWAA       = "mwaa"
	ServiceComposer   = "gcc"
)

// SupportedServices can be enabled and discovered.
var SupportedServices = []string{ServiceConveyor, ServiceAstronomer, ServiceKubernetes}

var knownServices = []string{ServiceConveyor, ServiceAstronomer, ServiceKubernetes, ServiceMWAA, ServiceComposer}

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	envConfigPath  = "FLOWRS_CONFIG_PATH"
	legacyFileName = ".flowrs"
	xdgConfigDir   = ".config/flowrs"
	configFileName = "config.toml"
)

// Discoverer lists the servers of one managed service.
type Discoverer interface {
	Discover(ctx context.Context) ([]Server, error)
}

// Store is the server configuration of one file plus servers discovered
// from managed services. Only configured servers are written back.
type Store struct {
	mu         sync.RWMutex
	path       string
	file       File
	discovered []Server
}

// DefaultPath returns $FLOWRS_CONFIG_PATH, else ~/.config/flowrs/config.toml
// when it exists, else ~/.flowrs.
func DefaultPath() (string, error) {
	if p := os.Getenv(envConfigPath); p != "" {
		return p, nil
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	xdg := filepath.Join(home, xdgConfigDir, configFileName)
	if _, err := os.Stat(xdg); err == nil {
		return xdg, nil
	}
	return filepath.Join(home, legacyFileName), nil
}

// ResolvePath returns path, or DefaultPath when path is empty.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultPath()
}

// Load reads the file at path. A missing file yields an empty store that
// Save will create.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Debug("Config", "no config file at %s", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &s.file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(s.file); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return s, nil
}

func validate(f File) error {
	seen := map[string]bool{}
	for i, srv := range f.Servers {
		if srv.Name == "" {
			return fmt.Errorf("server #%d has no name", i+1)
		}
		if seen[srv.Name] {
			return fmt.Errorf("%w: %s", ErrServerExists, srv.Name)
		}
		seen[srv.Name] = true
		if srv.Endpoint == "" {
			return fmt.Errorf("server %s has no endpoint", srv.Name)
		}
		if srv.Auth.Basic != nil && srv.Auth.Token != nil {
			return fmt.Errorf("server %s has both basic and token auth", srv.Name)
		}
	}
	for _, m := range f.ManagedServices {
		if !slices.Contains(knownServices, m) {
			return fmt.Errorf("%w: %s", ErrUnknownService, m)
		}
	}
	return nil
}

// Path is the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Save writes the configured servers with mode 0600.
func (s *Store) Save() error {
	s.mu.RLock()
	f := s.file
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", s.path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("restricting config %s: %w", s.path, err)
	}
	logging.Debug("Config", "saved %d servers to %s", len(f.Servers), s.path)
	return nil
}

// Servers returns configured servers followed by discovered ones. A
// discovered server never shadows a configured one of the same name.
func (s *Store) Servers() []Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.file.Servers)
	for _, d := range s.discovered {
		if !containsServer(out, d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// Configured returns only the servers stored in the file.
func (s *Store) Configured() []Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.file.Servers)
}

// Server looks a server up by name. Strings are returned unexpanded.
func (s *Store) Server(name string) (Server, bool) {
	for _, srv := range s.Servers() {
		if srv.Name == name {
			return srv, true
		}
	}
	return Server{}, false
}

// ActiveServer is the last selected server, or "" if it no longer exists.
func (s *Store) ActiveServer() string {
	s.mu.RLock()
	name := s.file.ActiveServer
	s.mu.RUnlock()
	if _, ok := s.Server(name); !ok {
		return ""
	}
	return name
}

// SetActive records name as the active server.
func (s *Store) SetActive(name string) error {
	if _, ok := s.Server(name); !ok {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	s.mu.Lock()
	s.file.ActiveServer = name
	s.mu.Unlock()
	return nil
}

// AddServer appends srv to the file.
func (s *Store) AddServer(srv Server) error {
	srv.Managed = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	if containsServer(s.file.Servers, srv.Name) {
		return fmt.Errorf("%w: %s", ErrServerExists, srv.Name)
	}
	next := s.file
	next.Servers = append(slices.Clone(s.file.Servers), srv)
	if err := validate(next); err != nil {
		return err
	}
	s.file = next
	return nil
}

// UpdateServer replaces the configured server with the same name.
func (s *Store) UpdateServer(srv Server) error {
	srv.Managed = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.file.Servers, func(c Server) bool { return c.Name == srv.Name })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, srv.Name)
	}
	next := s.file
	next.Servers = slices.Clone(s.file.Servers)
	next.Servers[i] = srv
	if err := validate(next); err != nil {
		return err
	}
	s.file = next
	return nil
}

// RemoveServer deletes a configured server. Removing the active server
// clears the selection.
func (s *Store) RemoveServer(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.file.Servers, func(c Server) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	s.file.Servers = slices.Delete(slices.Clone(s.file.Servers), i, i+1)
	if s.file.ActiveServer == name {
		s.file.ActiveServer = ""
	}
	return nil
}

// ManagedServices returns the enabled managed services.
func (s *Store) ManagedServices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.file.ManagedServices)
}

// EnableManaged turns on discovery for a managed service.
func (s *Store) EnableManaged(service string) error {
	if err := checkService(service); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.file.ManagedServices, service) {
		s.file.ManagedServices = append(s.file.ManagedServices, service)
	}
	return nil
}

// DisableManaged turns off discovery for a managed service and forgets
// the servers it found.
func (s *Store) DisableManaged(service string) error {
	if !slices.Contains(knownServices, service) {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.ManagedServices = slices.DeleteFunc(slices.Clone(s.file.ManagedServices), func(m string) bool { return m == service })
	s.discovered = slices.DeleteFunc(s.discovered, func(d Server) bool { return d.Managed == service })
	return nil
}

func checkService(service string) error {
	switch {
	case slices.Contains(SupportedServices, service):
		return nil
	case slices.Contains(knownServices, service):
		return fmt.Errorf("%w: %s", ErrUnsupportedService, service)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

// Discover asks each enabled managed service for its servers. A failing
// service is logged and reported but does not hide the others.
func (s *Store) Discover(ctx context.Context, discoverers map[string]Discoverer) error {
	var (
		found []Server
		errs  []error
	)
	for _, service := range s.ManagedServices() {
		if err := checkService(service); err != nil {
			errs = append(errs, err)
			continue
		}
		d, ok := discoverers[service]
		if !ok {
			continue
		}
		servers, err := d.Discover(ctx)
		if err != nil {
			logging.Warn("Config", "discovering %s servers: %v", service, err)
			errs = append(errs, fmt.Errorf("discovering %s servers: %w", service, err))
			continue
		}
		for _, srv := range servers {
			srv.Managed = service
			found = append(found, srv)
		}
		logging.Debug("Config", "discovered %d %s servers", len(servers), service)
	}

	s.mu.Lock()
	s.discovered = found
	s.mu.Unlock()
	return errors.Join(errs...)
}

func containsServer(servers []Server, name string) bool {
	return slices.ContainsFunc(servers, func(s Server) bool { return s.Name == name })
}

package config

import (
	"os"
	"time"

	"github.com/terakael/flowrs/internal/airflow"
)

// File is the on-disk server configuration.
type File struct {
	ActiveServer    string   `toml:"active_server,omitempty" yaml:"active_server,omitempty"`
	ManagedServices []string `toml:"managed_services,omitempty" yaml:"managed_services,omitempty"`
	Servers         []Server `toml:"servers" yaml:"servers"`
}

// Server is one Airflow instance. Managed is the managed service that
// discovered it, empty for servers listed in the file.
type Server struct {
	Name     string   `toml:"name" yaml:"name"`
	Endpoint string   `toml:"endpoint" yaml:"endpoint"`
	Version  string   `toml:"version,omitempty" yaml:"version,omitempty"`
	Proxy    string   `toml:"proxy,omitempty" yaml:"proxy,omitempty"`
	Timeout  Duration `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
	Auth     Auth     `toml:"auth,omitempty" yaml:"auth,omitempty"`
	Managed  string   `toml:"-" yaml:"managed,omitempty"`
}

// Auth holds at most one authentication method.
type Auth struct {
	Basic *BasicAuth `toml:"basic,omitempty" yaml:"basic,omitempty"`
	Token *TokenAuth `toml:"token,omitempty" yaml:"token,omitempty"`
}

type BasicAuth struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// TokenAuth is either a static token or a shell command printing one.
type TokenAuth struct {
	Cmd   string `toml:"cmd,omitempty" yaml:"cmd,omitempty"`
	Token string `toml:"token,omitempty" yaml:"token,omitempty"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// IsZero lets encoders skip unset timeouts.
func (d Duration) IsZero() bool { return d.Duration == 0 }

// Expanded returns s with ${VAR} references in string fields replaced from
// the environment. The stored value keeps the references.
func (s Server) Expanded() Server {
	out := s
	out.Endpoint = os.ExpandEnv(s.Endpoint)
	out.Proxy = os.ExpandEnv(s.Proxy)
	if s.Auth.Basic != nil {
		b := *s.Auth.Basic
		b.Username = os.ExpandEnv(b.Username)
		b.Password = os.ExpandEnv(b.Password)
		out.Auth.Basic = &b
	}
	if s.Auth.Token != nil {
		t := *s.Auth.Token
		t.Token = os.ExpandEnv(t.Token)
		out.Auth.Token = &t
	}
	return out
}

// Redacted returns a copy with secrets masked for display.
func (s Server) Redacted() Server {
	out := s
	if s.Auth.Basic != nil {
		b := *s.Auth.Basic
		b.Password = redact(b.Password)
		out.Auth.Basic = &b
	}
	if s.Auth.Token != nil {
		t := *s.Auth.Token
		t.Token = redact(t.Token)
		out.Auth.Token = &t
	}
	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// AuthMethod names the configured authentication for listings.
func (s Server) AuthMethod() string {
	switch {
	case s.Auth.Basic != nil:
		return "basic"
	case s.Auth.Token != nil && s.Auth.Token.Cmd != "":
		return "token-cmd"
	case s.Auth.Token != nil:
		return "token"
	default:
		return "none"
	}
}

// ClientOptions translates an expanded server into HTTP client options.
func (s Server) ClientOptions() (airflow.Options, error) {
	e := s.Expanded()
	version, err := airflow.ParseVersion(e.Version)
	if err != nil {
		return airflow.Options{}, err
	}
	opts := airflow.Options{
		Endpoint: e.Endpoint,
		Version:  version,
		Proxy:    e.Proxy,
		Timeout:  e.Timeout.Duration,
	}
	switch {
	case e.Auth.Basic != nil:
		opts.Auth = airflow.BasicAuth{Username: e.Auth.Basic.Username, Password: e.Auth.Basic.Password}
	case e.Auth.Token != nil && e.Auth.Token.Cmd != "":
		opts.Auth = &airflow.CachedToken{Source: airflow.CommandToken(e.Auth.Token.Cmd)}
	case e.Auth.Token != nil:
		opts.Auth = airflow.BearerToken{Token: e.Auth.Token.Token}
	}
	return opts, nil
}

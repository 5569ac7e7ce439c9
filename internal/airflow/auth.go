package airflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
)

// Authenticator decorates outgoing requests with credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// BasicAuth uses HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authenticate(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// BearerToken sends a fixed bearer token.
type BearerToken struct {
	Token string
}

func (b BearerToken) Authenticate(_ context.Context, req *http.Request) error {
	if b.Token == "" {
		return &APIError{Kind: KindUnauthorized, Message: "empty bearer token"}
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// TokenSource produces a bearer token on demand.
type TokenSource func(ctx context.Context) (string, error)

// CachedToken fetches a token from Source on first use and reuses it until
// Reset is called. A 401 from the server resets it through HTTPClient.
type CachedToken struct {
	Source TokenSource

	mu    sync.Mutex
	token string
}

func (c *CachedToken) Authenticate(ctx context.Context, req *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		tok, err := c.Source(ctx)
		if err != nil {
			return &APIError{Kind: KindUnauthorized, Message: "failed to obtain token", Err: err}
		}
		c.token = tok
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

// Reset forgets the cached token.
func (c *CachedToken) Reset() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// resetter is implemented by authenticators that can drop cached
// credentials after the server rejected them.
type resetter interface {
	Reset()
}

// CommandToken returns a TokenSource that runs command with `sh -c` and
// uses its trimmed standard output as the token. Output that is a JSON
// object is read as {"access_token": ...}.
func CommandToken(command string) TokenSource {
	return func(ctx context.Context) (string, error) {
		out, err := runCommand(ctx, command)
		if err != nil {
			return "", err
		}
		tok := strings.TrimSpace(out)
		if strings.HasPrefix(tok, "{") {
			var resp struct {
				AccessToken string `json:"access_token"`
			}
			if err := json.Unmarshal([]byte(tok), &resp); err != nil {
				return "", fmt.Errorf("parsing token command output: %w", err)
			}
			tok = resp.AccessToken
		}
		tok = strings.Trim(tok, `"'`)
		if tok == "" {
			return "", fmt.Errorf("token command %q produced no output", command)
		}
		return tok, nil
	}
}

// runCommand is replaced in tests.
var runCommand = func(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("token command failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("token command failed: %w", err)
	}
	return string(out), nil
}

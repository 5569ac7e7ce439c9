// Package mcpserver exposes read-only Airflow queries as Model Context
// Protocol tools over stdio, so assistants can inspect the same servers the
// terminal UI uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/pkg/logging"
)

const defaultCallTimeout = 30 * time.Second

// Servers resolves configured and discovered servers.
type Servers interface {
	Servers() []config.Server
	Server(name string) (config.Server, bool)
	ActiveServer() string
}

// ClientFactory builds an API client for a server.
type ClientFactory func(srv config.Server) (airflow.Client, error)

// Server is the flowrs MCP server.
type Server struct {
	servers   Servers
	newClient ClientFactory
	timeout   time.Duration
	version   string

	mu      sync.Mutex
	clients map[string]airflow.Client
}

// New returns a server answering from servers.
func New(servers Servers, newClient ClientFactory, version string) *Server {
	return &Server{
		servers:   servers,
		newClient: newClient,
		timeout:   defaultCallTimeout,
		version:   version,
		clients:   map[string]airflow.Client{},
	}
}

// MCPServer builds the mcp-go server with every tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		"flowrs",
		s.version,
		server.WithToolCapabilities(false),
	)
	srv.AddTools(s.Tools()...)
	return srv
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("MCP", "serving %d tools over stdio", len(s.Tools()))
	stdio := server.NewStdioServer(s.MCPServer())
	stdio.SetErrorLogger(logging.StdLogger("MCP"))
	return stdio.Listen(ctx, in, out)
}

// client returns a cached client for the named server, or the active one
// when name is empty.
func (s *Server) client(name string) (airflow.Client, string, error) {
	if name == "" {
		name = s.servers.ActiveServer()
	}
	if name == "" {
		return nil, "", fmt.Errorf("no server given and no active server configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[name]; ok {
		return c, name, nil
	}
	srv, ok := s.servers.Server(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", config.ErrServerNotFound, name)
	}
	c, err := s.newClient(srv)
	if err != nil {
		return nil, "", fmt.Errorf("creating client for %s: %w", name, err)
	}
	s.clients[name] = c
	return c, name, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/config"
)

type stubServers struct {
	active  string
	servers []config.Server
}

func (s stubServers) Servers() []config.Server { return s.servers }
func (s stubServers) ActiveServer() string     { return s.active }
func (s stubServers) Server(name string) (config.Server, bool) {
	for _, srv := range s.servers {
		if srv.Name == name {
			return srv, true
		}
	}
	return config.Server{}, false
}

type stubClient struct {
	airflow.Client
	server string
	logErr error
}

func (c stubClient) ListJobs(context.Context) ([]airflow.Job, error) {
	return []airflow.Job{{ID: c.server + "-etl"}}, nil
}

func (c stubClient) ListJobRuns(_ context.Context, jobID string) ([]airflow.JobRun, error) {
	return []airflow.JobRun{{JobID: jobID, RunID: "run123", State: airflow.StateFailed}}, nil
}

func (c stubClient) ListTaskInstances(_ context.Context, jobID, runID string) ([]airflow.TaskInstance, error) {
	return []airflow.TaskInstance{{JobID: jobID, RunID: runID, TaskID: "extract"}}, nil
}

func (c stubClient) GetLogs(_ context.Context, _, _, taskID string, attempt int) (string, error) {
	if c.logErr != nil {
		return "", c.logErr
	}
	return taskID + " attempt " + string(rune('0'+attempt)), nil
}

func newTestServer(logErr error) (*Server, *int) {
	built := 0
	servers := stubServers{
		active: "prod",
		servers: []config.Server{
			{Name: "prod", Endpoint: "https://prod", Version: "v2"},
			{Name: "dev", Endpoint: "https://dev", Version: "v1", Managed: "conveyor"},
		},
	}
	s := New(servers, func(srv config.Server) (airflow.Client, error) {
		built++
		return stubClient{server: srv.Name, logErr: logErr}, nil
	}, "test")
	return s, &built
}

func call(t *testing.T, s *Server, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, st := range s.Tools() {
		if st.Tool.Name != tool {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = args
		res, err := st.Handler(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not registered", tool)
	return nil
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestTools_Registered(t *testing.T) {
	s, _ := newTestServer(nil)
	var names []string
	for _, st := range s.Tools() {
		names = append(names, st.Tool.Name)
	}
	assert.Equal(t, []string{"list_servers", "list_jobs", "list_job_runs", "list_task_instances", "get_task_logs"}, names)
}

func TestListServers(t *testing.T) {
	s, _ := newTestServer(nil)
	res := call(t, s, "list_servers", nil)
	assert.False(t, res.IsError)

	var got []serverInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.Equal(t, "conveyor", got[1].Managed)
}

func TestListJobs_DefaultsToActiveServerAndCachesClients(t *testing.T) {
	s, built := newTestServer(nil)
	assert.Contains(t, text(t, call(t, s, "list_jobs", nil)), "prod-etl")
	assert.Contains(t, text(t, call(t, s, "list_jobs", map[string]any{"server": "prod"})), "prod-etl")
	assert.Contains(t, text(t, call(t, s, "list_jobs", map[string]any{"server": "dev"})), "dev-etl")
	assert.Equal(t, 2, *built)

	res := call(t, s, "list_jobs", map[string]any{"server": "nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "nope")
}

func TestListRunsAndTasks(t *testing.T) {
	s, _ := newTestServer(nil)
	assert.Contains(t, text(t, call(t, s, "list_job_runs", map[string]any{"job_id": "etl"})), "run123")

	res := call(t, s, "list_job_runs", nil)
	assert.True(t, res.IsError)

	out := text(t, call(t, s, "list_task_instances", map[string]any{"job_id": "etl", "run_id": "run123"}))
	assert.Contains(t, out, "extract")
}

func TestGetTaskLogs(t *testing.T) {
	s, _ := newTestServer(nil)
	args := map[string]any{"job_id": "etl", "run_id": "run123", "task_id": "extract"}
	assert.Equal(t, "extract attempt 1", text(t, call(t, s, "get_task_logs", args)))

	args["try_number"] = 2
	assert.Equal(t, "extract attempt 2", text(t, call(t, s, "get_task_logs", args)))

	args["try_number"] = 0
	assert.True(t, call(t, s, "get_task_logs", args).IsError)
}

func TestGetTaskLogs_NotFound(t *testing.T) {
	s, _ := newTestServer(&airflow.APIError{Kind: airflow.KindNotFound, Err: errors.New("404")})
	res := call(t, s, "get_task_logs", map[string]any{"job_id": "etl", "run_id": "r", "task_id": "t", "try_number": 3})
	assert.True(t, res.IsError)
	assert.Equal(t, "No log for t attempt 3", text(t, res))
}

func TestMCPServer_ListsTools(t *testing.T) {
	s, _ := newTestServer(nil)
	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	for _, name := range []string{"list_servers", "list_jobs", "list_job_runs", "list_task_instances", "get_task_logs"} {
		assert.Contains(t, string(data), name)
	}
}

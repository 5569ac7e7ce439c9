package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/terakael/flowrs/internal/airflow"
)

func serverParam() mcp.ToolOption {
	return mcp.WithString("server",
		mcp.Description("Server name from flowrs config list; the active server when omitted"),
	)
}

func jobParam() mcp.ToolOption {
	return mcp.WithString("job_id",
		mcp.Required(),
		mcp.Description("DAG id"),
	)
}

func runParam() mcp.ToolOption {
	return mcp.WithString("run_id",
		mcp.Required(),
		mcp.Description("DAG run id"),
	)
}

// Tools returns the tool definitions with their handlers.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_servers",
				mcp.WithDescription("List configured and discovered Airflow servers"),
			),
			Handler: s.handleListServers,
		},
		{
			Tool: mcp.NewTool("list_jobs",
				mcp.WithDescription("List the DAGs of a server"),
				serverParam(),
			),
			Handler: s.handleListJobs,
		},
		{
			Tool: mcp.NewTool("list_job_runs",
				mcp.WithDescription("List the runs of a DAG, newest first"),
				serverParam(),
				jobParam(),
			),
			Handler: s.handleListJobRuns,
		},
		{
			Tool: mcp.NewTool("list_task_instances",
				mcp.WithDescription("List the task instances of a DAG run"),
				serverParam(),
				jobParam(),
				runParam(),
			),
			Handler: s.handleListTaskInstances,
		},
		{
			Tool: mcp.NewTool("get_task_logs",
				mcp.WithDescription("Get the log of one attempt of a task instance"),
				serverParam(),
				jobParam(),
				runParam(),
				mcp.WithString("task_id",
					mcp.Required(),
					mcp.Description("Task id"),
				),
				mcp.WithNumber("try_number",
					mcp.Description("Attempt number, 1-based; defaults to 1"),
				),
			),
			Handler: s.handleGetTaskLogs,
		},
	}
}

type serverInfo struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Version  string `json:"version"`
	Managed  string `json:"managed,omitempty"`
	Active   bool   `json:"active"`
}

func (s *Server) handleListServers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := s.servers.ActiveServer()
	var out []serverInfo
	for _, srv := range s.servers.Servers() {
		out = append(out, serverInfo{
			Name:     srv.Name,
			Endpoint: srv.Endpoint,
			Version:  srv.Version,
			Managed:  srv.Managed,
			Active:   srv.Name == active,
		})
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("No servers configured"), nil
	}
	return jsonResult(out)
}

func (s *Server) handleListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.client(req.GetString("server", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	jobs, err := c.ListJobs(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list DAGs: %v", err)), nil
	}
	return jsonResult(jobs)
}

func (s *Server) handleListJobRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	c, _, err := s.client(req.GetString("server", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	runs, err := c.ListJobRuns(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list runs of %s: %v", jobID, err)), nil
	}
	return jsonResult(runs)
}

func (s *Server) handleListTaskInstances(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}
	c, _, err := s.client(req.GetString("server", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tis, err := c.ListTaskInstances(ctx, jobID, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks of %s: %v", runID, err)), nil
	}
	return jsonResult(tis)
}

func (s *Server) handleGetTaskLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ids [3]string
	for i, name := range []string{"job_id", "run_id", "task_id"} {
		v, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(name + " parameter is required"), nil
		}
		ids[i] = v
	}
	attempt := req.GetInt("try_number", 1)
	if attempt < 1 {
		return mcp.NewToolResultError("try_number must be at least 1"), nil
	}
	c, _, err := s.client(req.GetString("server", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := c.GetLogs(ctx, ids[0], ids[1], ids[2], attempt)
	if err != nil {
		if airflow.IsKind(err, airflow.KindNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No log for %s attempt %d", ids[2], attempt)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get logs: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

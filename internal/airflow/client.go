// Package airflow is a small client for the Airflow stable REST API.
//
// Two API generations are supported: v1 (Airflow 2, served under /api/v1)
// and v2 (Airflow 3, served under /api/v2). Both are exposed through the
// same Client interface; field and path differences are handled inside
// HTTPClient. Every method returns *APIError on failure.
package airflow

import (
	"context"
	"fmt"
	"strings"
)

// Client is the set of remote operations the application needs.
type Client interface {
	ListJobs(ctx context.Context) ([]Job, error)
	ListJobRuns(ctx context.Context, jobID string) ([]JobRun, error)
	TriggerJobRun(ctx context.Context, jobID string, conf map[string]any) (JobRun, error)
	SetJobRunState(ctx context.Context, jobID, runID string, state RunState) error
	ClearJobRun(ctx context.Context, jobID, runID string) error
	ListTaskInstances(ctx context.Context, jobID, runID string) ([]TaskInstance, error)
	SetTaskInstanceState(ctx context.Context, jobID, runID, taskID string, state RunState) error
	ClearTaskInstance(ctx context.Context, jobID, runID, taskID string) error
	GetLogs(ctx context.Context, jobID, runID, taskID string, attempt int) (string, error)
	SetJobPaused(ctx context.Context, jobID string, paused bool) error
	GetJobCode(ctx context.Context, job Job) (string, error)
	ListTasks(ctx context.Context, jobID string) ([]Task, error)
	ListVariables(ctx context.Context) ([]Variable, error)
	ListConnections(ctx context.Context) ([]Connection, error)
	ListImportErrors(ctx context.Context) ([]ImportError, error)
}

// Version selects the REST API generation.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
)

// ParseVersion accepts "v1"/"v2" as well as the Airflow major version
// ("2", "3"). The empty string means V1.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v1", "2", "airflow2":
		return V1, nil
	case "v2", "3", "airflow3":
		return V2, nil
	default:
		return "", fmt.Errorf("unknown API version %q (want v1 or v2)", s)
	}
}

// VersionFromAirflow maps an Airflow release string such as "2.10.3" or
// "3.0.1" to the API version it serves.
func VersionFromAirflow(release string) Version {
	if strings.HasPrefix(strings.TrimSpace(release), "3") {
		return V2
	}
	return V1
}

// Prefix is the path under the server endpoint that serves this version.
func (v Version) Prefix() string {
	if v == V2 {
		return "api/v2"
	}
	return "api/v1"
}

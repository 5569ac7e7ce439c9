package airflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, version Version, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(Options{
		Endpoint: srv.URL + "/",
		Version:  version,
		Auth:     BasicAuth{Username: "admin", Password: "secret"},
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RejectsBadEndpoint(t *testing.T) {
	_, err := NewHTTPClient(Options{Endpoint: "not a url"})
	assert.Error(t, err)
	_, err = NewHTTPClient(Options{Endpoint: "http://localhost:8080", Proxy: "://bad"})
	assert.Error(t, err)
}

func TestListJobs_PaginatesAndMaps(t *testing.T) {
	var calls int32
	c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/dags", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var dags []map[string]any
		for i := offset; i < offset+limit && i < 150; i++ {
			dags = append(dags, map[string]any{
				"dag_id":            fmt.Sprintf("dag_%03d", i),
				"is_paused":         i%2 == 0,
				"is_active":         true,
				"tags":              []map[string]string{{"name": "etl"}},
				"schedule_interval": map[string]string{"__type": "CronExpression", "value": "@daily"},
				"file_token":        "tok",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"dags": dags, "total_entries": 150})
	})

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 150)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "dag_000", jobs[0].ID)
	assert.True(t, jobs[0].Paused)
	assert.False(t, jobs[1].Paused)
	assert.Equal(t, []string{"etl"}, jobs[0].Tags)
	assert.Equal(t, "@daily", jobs[0].Schedule)
}

func TestListJobRuns_V2UsesLogicalDate(t *testing.T) {
	c := newTestClient(t, V2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/dags/etl/dagRuns", r.URL.Path)
		assert.Equal(t, "-start_date", r.URL.Query().Get("order_by"))
		_, _ = io.WriteString(w, `{"dag_runs":[{"dag_run_id":"manual__2024-01-01T00:00:00+00:00","dag_id":"etl","state":"running","logical_date":"2024-01-01T00:00:00Z","start_date":"2024-01-01T00:00:05Z","end_date":null}],"total_entries":1}`)
	})

	runs, err := c.ListJobRuns(context.Background(), "etl")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual__2024-01-01T00:00:00+00:00", runs[0].RunID)
	assert.Equal(t, StateRunning, runs[0].State)
	require.NotNil(t, runs[0].LogicalDate)
	assert.Equal(t, 2024, runs[0].LogicalDate.Year())
	assert.Nil(t, runs[0].EndDate)
}

func TestTriggerJobRun_SendsConf(t *testing.T) {
	c := newTestClient(t, V2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"x": float64(1)}, body["conf"])
		assert.Contains(t, body, "logical_date")
		_, _ = io.WriteString(w, `{"dag_run_id":"manual__1","dag_id":"etl","state":"queued"}`)
	})

	run, err := c.TriggerJobRun(context.Background(), "etl", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "manual__1", run.RunID)
	assert.Equal(t, StateQueued, run.State)
}

func TestSetJobPaused_UsesUpdateMask(t *testing.T) {
	c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "is_paused", r.URL.Query().Get("update_mask"))
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["is_paused"])
		_, _ = io.WriteString(w, `{}`)
	})
	require.NoError(t, c.SetJobPaused(context.Background(), "etl", true))
}

func TestGetLogs(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		body    string
		want    string
	}{
		{
			name:    "v1 string content",
			version: V1,
			body:    `{"content":"line one\nline two","continuation_token":null}`,
			want:    "line one\nline two",
		},
		{
			name:    "v2 structured content",
			version: V2,
			body:    `{"content":[{"event":"starting","timestamp":"2024-01-01T00:00:00Z","level":"info"},"plain"]}`,
			want:    "[2024-01-01T00:00:00Z] INFO - starting\nplain\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.version, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/"+string(tt.version)+"/dags/etl/dagRuns/run1/taskInstances/extract/logs/2", r.URL.Path)
				assert.Equal(t, "true", r.URL.Query().Get("full_content"))
				_, _ = io.WriteString(w, tt.body)
			})
			text, err := c.GetLogs(context.Background(), "etl", "run1", "extract", 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestGetJobCode(t *testing.T) {
	v1 := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dagSources/tok123", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, "from airflow import DAG\n")
	})
	code, err := v1.GetJobCode(context.Background(), Job{ID: "etl", FileToken: "tok123"})
	require.NoError(t, err)
	assert.Equal(t, "from airflow import DAG\n", code)

	_, err = v1.GetJobCode(context.Background(), Job{ID: "etl"})
	assert.True(t, IsKind(err, KindNotFound))

	v2 := newTestClient(t, V2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/dagSources/etl", r.URL.Path)
		_, _ = io.WriteString(w, `{"content":"print(1)"}`)
	})
	code, err = v2.GetJobCode(context.Background(), Job{ID: "etl"})
	require.NoError(t, err)
	assert.Equal(t, "print(1)", code)
}

func TestListTasks(t *testing.T) {
	c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dags/etl/tasks", r.URL.Path)
		_, _ = io.WriteString(w, `{"tasks":[{"task_id":"extract","downstream_task_ids":["load"]},{"task_id":"load","downstream_task_ids":[]}],"total_entries":2}`)
	})
	tasks, err := c.ListTasks(context.Background(), "etl")
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "extract", Downstream: []string{"load"}}, {ID: "load", Downstream: []string{}}}, tasks)
}

func TestListVariablesAndConnections(t *testing.T) {
	c := newTestClient(t, V2, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/variables":
			assert.Equal(t, "key", r.URL.Query().Get("order_by"))
			_, _ = io.WriteString(w, `{"variables":[{"key":"env","value":"{\"region\":\"eu\"}","description":null}],"total_entries":1}`)
		case "/api/v2/connections":
			_, _ = io.WriteString(w, `{"connections":[{"connection_id":"pg","conn_type":"postgres","host":"db","port":5432,"login":"etl","schema":null}],"total_entries":1}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	vars, err := c.ListVariables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Variable{{Name: "env", Value: `{"region":"eu"}`}}, vars)

	conns, err := c.ListConnections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Connection{{ID: "pg", Type: "postgres", Host: "db", Port: 5432, Login: "etl"}}, conns)
}

func TestListImportErrors(t *testing.T) {
	c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/importErrors", r.URL.Path)
		_, _ = io.WriteString(w, `{"import_errors":[{"import_error_id":3,"timestamp":"2024-05-01T10:00:00Z","filename":"/dags/broken.py","stack_trace":"SyntaxError"}],"total_entries":1}`)
	})
	errs, err := c.ListImportErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "3", errs[0].Key())
	assert.Equal(t, "/dags/broken.py", errs[0].Filename)
	assert.Equal(t, "SyntaxError", errs[0].StackTrace)
	require.NotNil(t, errs[0].Timestamp)
	assert.Equal(t, 2024, errs[0].Timestamp.Year())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindServerError},
		{http.StatusInternalServerError, KindServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"title":"Nope","detail":"run is locked"}`)
			})
			err := c.SetJobRunState(context.Background(), "etl", "run1", StateSuccess)
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Contains(t, apiErr.Error(), "run is locked")
		})
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, V1, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.SetJobPaused(ctx, "etl", false)
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestNetworkErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(Options{Endpoint: url, Timeout: time.Second})
	require.NoError(t, err)
	err = c.SetJobPaused(context.Background(), "etl", false)
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
}

func TestCachedTokenResetsOnUnauthorized(t *testing.T) {
	var issued int32
	source := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&issued, 1)
		return fmt.Sprintf("tok-%d", n), nil
	}
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if len(seen) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Options{Endpoint: srv.URL, Auth: &CachedToken{Source: source}})
	require.NoError(t, err)

	err = c.SetJobPaused(context.Background(), "etl", true)
	assert.True(t, IsKind(err, KindUnauthorized))
	require.NoError(t, c.SetJobPaused(context.Background(), "etl", true))
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, seen)
}

func TestCommandToken(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()
	runCommand = func(ctx context.Context, command string) (string, error) {
		assert.Equal(t, "gcloud auth print-access-token", command)
		return "\"abc123\"\n", nil
	}
	tok, err := CommandToken("gcloud auth print-access-token")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	runCommand = func(ctx context.Context, command string) (string, error) {
		return `{"access_token": "conveyor-tok", "expires_in": 3600}`, nil
	}
	tok, err = CommandToken("conveyor auth get --quiet")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "conveyor-tok", tok)

	runCommand = func(ctx context.Context, command string) (string, error) { return "  \n", nil }
	_, err = CommandToken("true")(context.Background())
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("")
	require.NoError(t, err)
	assert.Equal(t, V1, v)
	v, err = ParseVersion("3")
	require.NoError(t, err)
	assert.Equal(t, V2, v)
	_, err = ParseVersion("v9")
	assert.Error(t, err)
	assert.Equal(t, V2, VersionFromAirflow("3.0.2"))
	assert.Equal(t, V1, VersionFromAirflow("2.10.3"))
}

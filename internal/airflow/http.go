package airflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/terakael/flowrs/pkg/logging"
)

const (
	pageSize       = 100
	maxJobRuns     = 200
	defaultTimeout = 10 * time.Second
)

// Options configures an HTTPClient.
type Options struct {
	Endpoint string
	Version  Version
	Auth     Authenticator
	// Proxy overrides HTTP(S)_PROXY from the environment.
	Proxy string
	// Timeout bounds each request when the caller's context has no earlier
	// deadline.
	Timeout time.Duration
	// RetryMax is the number of retries for idempotent reads.
	RetryMax int
}

// HTTPClient implements Client over the Airflow REST API.
type HTTPClient struct {
	base    string
	version Version
	auth    Authenticator
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient validates opts and builds a client. Reads are retried with
// backoff on connection errors and 5xx responses; writes are sent once.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", opts.Endpoint)
	}
	if opts.Version == "" {
		opts.Version = V1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	transport := cleanhttp.DefaultPooledTransport()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	httpClient := &http.Client{Transport: transport, Timeout: opts.Timeout}

	newClient := func(retries int) *retryablehttp.Client {
		rc := retryablehttp.NewClient()
		rc.HTTPClient = httpClient
		rc.RetryMax = retries
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
		rc.Logger = logging.Logger("AirflowHTTP")
		return rc
	}

	return &HTTPClient{
		base:    strings.TrimRight(endpoint, "/") + "/" + opts.Version.Prefix(),
		version: opts.Version,
		auth:    opts.Auth,
		reads:   newClient(opts.RetryMax),
		writes:  newClient(0),
	}, nil
}

// Version reports the API generation the client speaks.
func (c *HTTPClient) Version() Version { return c.version }

func (c *HTTPClient) url(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.base + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type request struct {
	method  string
	url     string
	body    any
	accept  string
	decoded any
}

func (c *HTTPClient) do(ctx context.Context, r request) error {
	var payload any
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return &APIError{Kind: KindNetwork, Message: "failed to encode request", Err: err}
		}
		payload = raw
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, r.url, payload)
	if err != nil {
		return &APIError{Kind: KindNetwork, Err: err}
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		if err := c.auth.Authenticate(ctx, req.Request); err != nil {
			return classifyTransportError(err)
		}
	}

	client := c.writes
	if r.method == http.MethodGet {
		client = c.reads
	}
	logging.Debug("AirflowHTTP", "%s %s", r.method, r.url)
	resp, err := client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := errorFromResponse(resp)
		if apiErr.Kind == KindUnauthorized {
			if rs, ok := c.auth.(resetter); ok {
				rs.Reset()
			}
		}
		return apiErr
	}

	switch out := r.decoded.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
	case *string:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransportError(err)
		}
		*out = string(raw)
	default:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransportError(err)
		}
		if err := json.NewDecoder(bytes.NewReader(raw)).Decode(out); err != nil {
			return &APIError{Kind: KindServerError, Status: resp.StatusCode, Message: "malformed response body", Err: err}
		}
	}
	return nil
}

func pageQuery(offset, limit int, extra url.Values) url.Values {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// paginate calls fetch until the reported total is reached, a short page
// comes back, or max items were collected. max <= 0 means no cap.
func paginate[T any](ctx context.Context, max int, fetch func(ctx context.Context, offset, limit int) ([]T, int, error)) ([]T, error) {
	var all []T
	for offset := 0; ; {
		limit := pageSize
		if max > 0 && max-len(all) < limit {
			limit = max - len(all)
		}
		page, total, err := fetch(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		offset += len(page)
		if len(page) < limit || offset >= total || (max > 0 && len(all) >= max) {
			return all, nil
		}
	}
}

func (c *HTTPClient) ListJobs(ctx context.Context) ([]Job, error) {
	return paginate(ctx, 0, func(ctx context.Context, offset, limit int) ([]Job, int, error) {
		var coll dagCollection
		q := pageQuery(offset, limit, url.Values{"order_by": {"dag_id"}})
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "dags"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		jobs := make([]Job, 0, len(coll.Dags))
		for _, d := range coll.Dags {
			jobs = append(jobs, d.toJob())
		}
		return jobs, coll.TotalEntries, nil
	})
}

func (c *HTTPClient) ListJobRuns(ctx context.Context, jobID string) ([]JobRun, error) {
	order := "-execution_date"
	if c.version == V2 {
		order = "-start_date"
	}
	return paginate(ctx, maxJobRuns, func(ctx context.Context, offset, limit int) ([]JobRun, int, error) {
		var coll dagRunCollection
		q := pageQuery(offset, limit, url.Values{"order_by": {order}})
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "dags", jobID, "dagRuns"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		runs := make([]JobRun, 0, len(coll.DagRuns))
		for _, r := range coll.DagRuns {
			run := r.toJobRun()
			if run.JobID == "" {
				run.JobID = jobID
			}
			runs = append(runs, run)
		}
		return runs, coll.TotalEntries, nil
	})
}

func (c *HTTPClient) TriggerJobRun(ctx context.Context, jobID string, conf map[string]any) (JobRun, error) {
	body := map[string]any{}
	if conf != nil {
		body["conf"] = conf
	}
	if c.version == V2 {
		body["logical_date"] = nil
	}
	var run dagRunWire
	err := c.do(ctx, request{method: http.MethodPost, url: c.url(nil, "dags", jobID, "dagRuns"), body: body, decoded: &run})
	if err != nil {
		return JobRun{}, err
	}
	out := run.toJobRun()
	if out.JobID == "" {
		out.JobID = jobID
	}
	return out, nil
}

func (c *HTTPClient) SetJobRunState(ctx context.Context, jobID, runID string, state RunState) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		url:    c.url(nil, "dags", jobID, "dagRuns", runID),
		body:   map[string]any{"state": state},
	})
}

func (c *HTTPClient) ClearJobRun(ctx context.Context, jobID, runID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		url:    c.url(nil, "dags", jobID, "dagRuns", runID, "clear"),
		body:   map[string]any{"dry_run": false},
	})
}

func (c *HTTPClient) ListTaskInstances(ctx context.Context, jobID, runID string) ([]TaskInstance, error) {
	return paginate(ctx, 0, func(ctx context.Context, offset, limit int) ([]TaskInstance, int, error) {
		var coll taskInstanceCollection
		q := pageQuery(offset, limit, nil)
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "dags", jobID, "dagRuns", runID, "taskInstances"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		tis := make([]TaskInstance, 0, len(coll.TaskInstances))
		for _, t := range coll.TaskInstances {
			ti := t.toTaskInstance()
			if ti.JobID == "" {
				ti.JobID = jobID
			}
			if ti.RunID == "" {
				ti.RunID = runID
			}
			tis = append(tis, ti)
		}
		return tis, coll.TotalEntries, nil
	})
}

func (c *HTTPClient) SetTaskInstanceState(ctx context.Context, jobID, runID, taskID string, state RunState) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		url:    c.url(nil, "dags", jobID, "dagRuns", runID, "taskInstances", taskID),
		body:   map[string]any{"new_state": state, "dry_run": false},
	})
}

func (c *HTTPClient) ClearTaskInstance(ctx context.Context, jobID, runID, taskID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		url:    c.url(nil, "dags", jobID, "clearTaskInstances"),
		body: map[string]any{
			"dry_run":    false,
			"task_ids":   []string{taskID},
			"dag_run_id": runID,
		},
	})
}

func (c *HTTPClient) GetLogs(ctx context.Context, jobID, runID, taskID string, attempt int) (string, error) {
	var lw logWire
	q := url.Values{"full_content": {"true"}}
	err := c.do(ctx, request{
		method:  http.MethodGet,
		url:     c.url(q, "dags", jobID, "dagRuns", runID, "taskInstances", taskID, "logs", strconv.Itoa(attempt)),
		decoded: &lw,
	})
	if err != nil {
		return "", err
	}
	text, err := lw.text()
	if err != nil {
		return "", &APIError{Kind: KindServerError, Message: "malformed log response", Err: err}
	}
	return text, nil
}

func (c *HTTPClient) SetJobPaused(ctx context.Context, jobID string, paused bool) error {
	q := url.Values{"update_mask": {"is_paused"}}
	return c.do(ctx, request{
		method: http.MethodPatch,
		url:    c.url(q, "dags", jobID),
		body:   map[string]any{"is_paused": paused},
	})
}

// GetJobCode returns the DAG file source. v1 addresses sources by file
// token, v2 by dag id.
func (c *HTTPClient) GetJobCode(ctx context.Context, job Job) (string, error) {
	if c.version == V2 {
		var src dagSourceWire
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(nil, "dagSources", job.ID), decoded: &src}); err != nil {
			return "", err
		}
		return src.Content, nil
	}
	if job.FileToken == "" {
		return "", &APIError{Kind: KindNotFound, Message: "job has no file token"}
	}
	var text string
	err := c.do(ctx, request{method: http.MethodGet, url: c.url(nil, "dagSources", job.FileToken), accept: "text/plain", decoded: &text})
	return text, err
}

// ListTasks returns the task graph of a job. The endpoint is not paged.
func (c *HTTPClient) ListTasks(ctx context.Context, jobID string) ([]Task, error) {
	var coll taskCollection
	q := url.Values{"order_by": {"task_id"}}
	if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "dags", jobID, "tasks"), decoded: &coll}); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(coll.Tasks))
	for _, t := range coll.Tasks {
		tasks = append(tasks, Task{ID: t.TaskID, Downstream: t.DownstreamTaskIDs})
	}
	return tasks, nil
}

func (c *HTTPClient) ListVariables(ctx context.Context) ([]Variable, error) {
	return paginate(ctx, 0, func(ctx context.Context, offset, limit int) ([]Variable, int, error) {
		var coll variableCollection
		q := pageQuery(offset, limit, url.Values{"order_by": {"key"}})
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "variables"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		vars := make([]Variable, 0, len(coll.Variables))
		for _, v := range coll.Variables {
			vars = append(vars, v.toVariable())
		}
		return vars, coll.TotalEntries, nil
	})
}

func (c *HTTPClient) ListConnections(ctx context.Context) ([]Connection, error) {
	return paginate(ctx, 0, func(ctx context.Context, offset, limit int) ([]Connection, int, error) {
		var coll connectionCollection
		q := pageQuery(offset, limit, url.Values{"order_by": {"connection_id"}})
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "connections"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		conns := make([]Connection, 0, len(coll.Connections))
		for _, cw := range coll.Connections {
			conns = append(conns, cw.toConnection())
		}
		return conns, coll.TotalEntries, nil
	})
}

func (c *HTTPClient) ListImportErrors(ctx context.Context) ([]ImportError, error) {
	return paginate(ctx, 0, func(ctx context.Context, offset, limit int) ([]ImportError, int, error) {
		var coll importErrorCollection
		q := pageQuery(offset, limit, nil)
		if err := c.do(ctx, request{method: http.MethodGet, url: c.url(q, "importErrors"), decoded: &coll}); err != nil {
			return nil, 0, err
		}
		errs := make([]ImportError, 0, len(coll.ImportErrors))
		for _, e := range coll.ImportErrors {
			errs = append(errs, ImportError{ID: e.ImportErrorID, Timestamp: e.Timestamp, Filename: e.Filename, StackTrace: e.StackTrace})
		}
		return errs, coll.TotalEntries, nil
	})
}

// Package worker executes queued commands against the Airflow API, one at
// a time, and applies their results to the shared state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/cache"
	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/pkg/logging"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 10 * time.Second

// Servers resolves server names and records the active one.
type Servers interface {
	Server(name string) (config.Server, bool)
	SetActive(name string) error
}

// ClientFactory builds an API client for a server.
type ClientFactory func(config.Server) (airflow.Client, error)

// HTTPClientFactory builds REST clients from the server configuration.
func HTTPClientFactory(srv config.Server) (airflow.Client, error) {
	opts, err := srv.ClientOptions()
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", srv.Name, err)
	}
	c, err := airflow.NewHTTPClient(opts)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", srv.Name, err)
	}
	return c, nil
}

// LogCache stores logs of finished attempts.
type LogCache interface {
	Get(ctx context.Context, k cache.Key) (string, bool, error)
	Put(ctx context.Context, k cache.Key, content string) error
}

// Editor shows text to the user in an external editor and returns once
// the editor has exited. name hints at the content, e.g. for a file name.
type Editor func(ctx context.Context, name, text string) error

// ErrNoEditor is returned for EditLog when no Editor was configured.
var ErrNoEditor = errors.New("no terminal available to run an editor")

// Worker is the single consumer of the command queue.
type Worker struct {
	state     *model.State
	queue     *Queue
	servers   Servers
	newClient ClientFactory
	timeout   time.Duration
	cache     LogCache
	clipboard func(string) error
	browser   func(string) error
	editor    Editor
	notify    func()

	// Only touched from Run's goroutine.
	clients map[string]airflow.Client
	// graphs caches task graphs by server and job id.
	graphs map[graphKey][]airflow.Task
}

type graphKey struct {
	server string
	jobID  string
}

// Option configures a Worker.
type Option func(*Worker)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogCache enables caching of finished attempt logs.
func WithLogCache(c LogCache) Option {
	return func(w *Worker) { w.cache = c }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(w *Worker) { w.clipboard = fn }
}

// WithBrowser replaces the launcher used to open web UI pages.
func WithBrowser(fn func(url string) error) Option {
	return func(w *Worker) { w.browser = fn }
}

// WithEditor sets the editor used for EditLog.
func WithEditor(e Editor) Option {
	return func(w *Worker) { w.editor = e }
}

// WithNotify sets a callback run after every state change, typically to
// wake the event loop for a redraw.
func WithNotify(fn func()) Option {
	return func(w *Worker) { w.notify = fn }
}

// New returns a worker consuming queue and updating state.
func New(state *model.State, queue *Queue, servers Servers, newClient ClientFactory, opts ...Option) *Worker {
	w := &Worker{
		state:     state,
		queue:     queue,
		servers:   servers,
		newClient: newClient,
		timeout:   DefaultTimeout,
		clipboard: clipboard.WriteAll,
		browser:   openBrowser,
		notify:    func() {},
		clients:   map[string]airflow.Client{},
		graphs:    map[graphKey][]airflow.Task{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes commands until ctx is done or the queue is closed. It
// returns an error only when the state was poisoned.
func (w *Worker) Run(ctx context.Context) error {
	logging.Debug("Worker", "started")
	defer logging.Debug("Worker", "stopped")
	for {
		cmd, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := w.Process(ctx, cmd); err != nil {
			return err
		}
	}
}

// apply is run under the state lock. It must not block.
type apply func(d *model.Data)

// Process executes one command and applies its outcome.
func (w *Worker) Process(ctx context.Context, cmd model.Command) error {
	tag := cmd.Tag()
	log := logging.Logger("Worker").With(
		slog.String("cmd", cmd.Name()),
		slog.String("target", cmd.Target()),
		slog.String("id", tag.ID),
		slog.Uint64("generation", tag.Generation),
	)

	if !alwaysRuns(cmd) {
		current, err := w.isCurrent(tag)
		if err != nil {
			return err
		}
		if !current {
			log.Debug("skipping stale command")
			return nil
		}
	}

	callCtx, cancel := w.deadline(ctx, cmd)
	start := time.Now()
	onSuccess, onFailure, err := w.execute(callCtx, cmd)
	err = classify(callCtx, err)
	cancel()

	if err != nil && ctx.Err() != nil {
		log.Debug("dropping result after shutdown", slog.Any("error", err))
		return nil
	}
	if err != nil {
		log.Warn("command failed", slog.Duration("elapsed", time.Since(start)), slog.Any("error", err))
	} else {
		log.Debug("command done", slog.Duration("elapsed", time.Since(start)))
	}

	mutateErr := w.state.Mutate(func(d *model.Data) {
		stale := d.Generation != tag.Generation
		if err == nil {
			if onSuccess != nil {
				onSuccess(d)
			}
			return
		}
		if onFailure != nil {
			onFailure(d)
		}
		// A stale read failing is of no interest any more.
		if stale && !alwaysRuns(cmd) {
			return
		}
		d.Banner = model.NewAppError(cmd, err)
	})
	if mutateErr != nil {
		return mutateErr
	}
	w.notify()
	return nil
}

// deadline bounds API calls by the worker timeout. The editor runs for as
// long as the user keeps it open.
func (w *Worker) deadline(ctx context.Context, cmd model.Command) (context.Context, context.CancelFunc) {
	if _, ok := cmd.(model.EditLog); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.timeout)
}

// alwaysRuns reports commands executed regardless of the server context
// they were issued in.
func alwaysRuns(cmd model.Command) bool {
	switch cmd.(type) {
	case model.Mutation, model.CopyToClipboard:
		return true
	default:
		return false
	}
}

func (w *Worker) isCurrent(tag model.Stamp) (bool, error) {
	var current bool
	err := w.state.Mutate(func(d *model.Data) {
		current = d.Generation == tag.Generation
	})
	return current, err
}

// classify turns a bare deadline error into a timeout APIError.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *airflow.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &airflow.APIError{Kind: airflow.KindTimeout, Err: err}
	}
	return err
}

// client returns the cached client for a server, building it on first use.
func (w *Worker) client(name string) (airflow.Client, error) {
	if c, ok := w.clients[name]; ok {
		return c, nil
	}
	srv, ok := w.servers.Server(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrServerNotFound, name)
	}
	c, err := w.newClient(srv)
	if err != nil {
		return nil, err
	}
	w.clients[name] = c
	return c, nil
}

// execute performs the remote part of cmd. The returned closures update
// the state on success and failure respectively.
func (w *Worker) execute(ctx context.Context, cmd model.Command) (onSuccess, onFailure apply, err error) {
	tag := cmd.Tag()
	inContext := func(d *model.Data) bool { return d.Generation == tag.Generation }

	if c, ok := cmd.(model.CopyToClipboard); ok {
		return nil, nil, w.clipboard(c.Text)
	}
	if c, ok := cmd.(model.SwitchServer); ok {
		return w.switchServer(ctx, c)
	}
	if c, ok := cmd.(model.OpenInBrowser); ok {
		return nil, nil, w.openInBrowser(c)
	}
	if c, ok := cmd.(model.EditLog); ok {
		if w.editor == nil {
			return nil, nil, ErrNoEditor
		}
		name := fmt.Sprintf("%s-attempt-%d.log", c.TaskID, c.Attempt)
		return nil, nil, w.editor(ctx, name, c.Text)
	}

	client, err := w.client(tag.Server)
	if err != nil {
		return nil, nil, err
	}

	switch c := cmd.(type) {
	case model.FetchJobs:
		jobs, err := client.ListJobs(ctx)
		if err != nil {
			return nil, func(d *model.Data) {
				if inContext(d) {
					d.Jobs.Loading = false
				}
			}, err
		}
		return func(d *model.Data) {
			if inContext(d) {
				d.Jobs.SetJobs(jobs)
			}
		}, nil, nil

	case model.ToggleJobPause:
		err := client.SetJobPaused(ctx, c.JobID, c.Paused)
		return nil, func(d *model.Data) {
			if inContext(d) {
				d.Jobs.RevertPaused(c.JobID, c.Paused, c.Prior)
			}
		}, err

	case model.FetchJobCode:
		code, err := client.GetJobCode(ctx, c.Job)
		runsOf := func(d *model.Data) bool { return inContext(d) && d.JobRuns.JobID == c.Job.ID }
		if err != nil {
			return nil, func(d *model.Data) {
				if runsOf(d) {
					d.JobRuns.CodeLoading = false
				}
			}, err
		}
		return func(d *model.Data) {
			if runsOf(d) {
				d.JobRuns.SetCode(code)
			}
		}, nil, nil

	case model.FetchImportErrors:
		errs, err := client.ListImportErrors(ctx)
		if err != nil {
			return nil, nil, err
		}
		return func(d *model.Data) {
			if inContext(d) {
				d.Jobs.SetImportErrors(errs)
			}
		}, nil, nil

	case model.FetchVariables:
		vars, err := client.ListVariables(ctx)
		if err != nil {
			return nil, stopSectionLoading(inContext), err
		}
		return func(d *model.Data) {
			if inContext(d) {
				d.Jobs.SetVariables(vars)
			}
		}, nil, nil

	case model.FetchConnections:
		conns, err := client.ListConnections(ctx)
		if err != nil {
			return nil, stopSectionLoading(inContext), err
		}
		return func(d *model.Data) {
			if inContext(d) {
				d.Jobs.SetConnections(conns)
			}
		}, nil, nil

	case model.FetchJobRuns:
		return w.fetchRuns(ctx, client, c.JobID, inContext)

	case model.TriggerJobRun:
		run, err := client.TriggerJobRun(ctx, c.JobID, c.Conf)
		runsOf := func(d *model.Data) bool { return inContext(d) && d.JobRuns.JobID == c.JobID }
		if err != nil {
			return nil, func(d *model.Data) {
				if runsOf(d) {
					d.JobRuns.RemovePlaceholder(c.PlaceholderID)
				}
			}, err
		}
		return func(d *model.Data) {
			if runsOf(d) {
				d.JobRuns.ResolvePlaceholder(c.PlaceholderID, run)
			}
		}, nil, nil

	case model.SetJobRunState:
		err := client.SetJobRunState(ctx, c.JobID, c.RunID, c.State)
		runsOf := func(d *model.Data) bool { return inContext(d) && d.JobRuns.JobID == c.JobID }
		if err != nil {
			return nil, func(d *model.Data) {
				if runsOf(d) {
					d.JobRuns.RevertRunState(c.RunID, c.State, c.Prior)
				}
			}, err
		}
		return func(d *model.Data) {
			if runsOf(d) {
				d.JobRuns.SetRunState(c.RunID, c.State)
			}
		}, nil, nil

	case model.ClearJobRun:
		if err := client.ClearJobRun(ctx, c.JobID, c.RunID); err != nil {
			return nil, nil, err
		}
		return w.fetchRuns(ctx, client, c.JobID, inContext)

	case model.FetchTaskInstances:
		return w.fetchTasks(ctx, client, tag.Server, c.JobID, c.RunID, inContext)

	case model.SetTaskInstanceState:
		err := client.SetTaskInstanceState(ctx, c.JobID, c.RunID, c.TaskID, c.State)
		tasksOf := func(d *model.Data) bool {
			return inContext(d) && d.TaskInstances.JobID == c.JobID && d.TaskInstances.RunID == c.RunID
		}
		if err != nil {
			return nil, func(d *model.Data) {
				if tasksOf(d) {
					d.TaskInstances.RevertState(c.Key, c.State, c.Prior)
				}
			}, err
		}
		return func(d *model.Data) {
			if tasksOf(d) {
				d.TaskInstances.SetState(c.Key, c.State)
			}
		}, nil, nil

	case model.ClearTaskInstance:
		if err := client.ClearTaskInstance(ctx, c.JobID, c.RunID, c.TaskID); err != nil {
			return nil, nil, err
		}
		return w.fetchTasks(ctx, client, tag.Server, c.JobID, c.RunID, inContext)

	case model.FetchLogs:
		text, err := w.fetchLogs(ctx, client, c)
		if err != nil {
			return nil, func(d *model.Data) {
				if inContext(d) && d.Logs.Matches(c.JobID, c.RunID, c.TaskID) {
					d.Logs.SetFailed(c.Attempt, err.Error())
				}
			}, err
		}
		return func(d *model.Data) {
			if inContext(d) && d.Logs.Matches(c.JobID, c.RunID, c.TaskID) {
				d.Logs.SetAttempt(c.Attempt, text)
			}
		}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unhandled command %s", cmd.Name())
	}
}

func (w *Worker) switchServer(ctx context.Context, c model.SwitchServer) (apply, apply, error) {
	inContext := func(d *model.Data) bool { return d.Generation == c.Generation }
	stopLoading := func(d *model.Data) {
		if inContext(d) {
			d.Jobs.Loading = false
		}
	}

	srv, ok := w.servers.Server(c.Server)
	if !ok {
		return nil, stopLoading, fmt.Errorf("%w: %s", config.ErrServerNotFound, c.Server)
	}
	// Rebuild so edited settings take effect.
	client, err := w.newClient(srv)
	if err != nil {
		return nil, stopLoading, err
	}
	w.clients[c.Server] = client
	for k := range w.graphs {
		if k.server == c.Server {
			delete(w.graphs, k)
		}
	}
	if err := w.servers.SetActive(c.Server); err != nil {
		return nil, stopLoading, err
	}

	jobs, err := client.ListJobs(ctx)
	if err != nil {
		return nil, stopLoading, err
	}
	imports, importErr := client.ListImportErrors(ctx)
	if importErr != nil {
		logging.Warn("Worker", "listing import errors of %s failed: %v", c.Server, importErr)
	}
	return func(d *model.Data) {
		if inContext(d) {
			d.Jobs.SetJobs(jobs)
			if importErr == nil {
				d.Jobs.SetImportErrors(imports)
			}
		}
	}, nil, nil
}

func stopSectionLoading(inContext func(*model.Data) bool) apply {
	return func(d *model.Data) {
		if inContext(d) {
			d.Jobs.SectionLoading = false
		}
	}
}

func (w *Worker) openInBrowser(c model.OpenInBrowser) error {
	name := c.ServerName
	if name == "" {
		name = c.Server
	}
	srv, ok := w.servers.Server(name)
	if !ok {
		return fmt.Errorf("%w: %s", config.ErrServerNotFound, name)
	}
	opts, err := srv.ClientOptions()
	if err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	url, err := airflow.WebURL(opts.Endpoint, opts.Version, c.Item)
	if err != nil {
		return err
	}
	logging.Debug("Worker", "opening %s", url)
	return w.browser(url)
}

func (w *Worker) fetchRuns(ctx context.Context, client airflow.Client, jobID string, inContext func(*model.Data) bool) (apply, apply, error) {
	runsOf := func(d *model.Data) bool { return inContext(d) && d.JobRuns.JobID == jobID }
	runs, err := client.ListJobRuns(ctx, jobID)
	if err != nil {
		return nil, func(d *model.Data) {
			if runsOf(d) {
				d.JobRuns.Loading = false
			}
		}, err
	}
	return func(d *model.Data) {
		if runsOf(d) {
			d.JobRuns.SetRuns(runs)
		}
	}, nil, nil
}

func (w *Worker) fetchTasks(ctx context.Context, client airflow.Client, server, jobID, runID string, inContext func(*model.Data) bool) (apply, apply, error) {
	tasksOf := func(d *model.Data) bool {
		return inContext(d) && d.TaskInstances.JobID == jobID && d.TaskInstances.RunID == runID
	}
	tis, err := client.ListTaskInstances(ctx, jobID, runID)
	if err != nil {
		return nil, func(d *model.Data) {
			if tasksOf(d) {
				d.TaskInstances.Loading = false
			}
		}, err
	}
	graph := w.taskGraph(ctx, client, server, jobID)
	return func(d *model.Data) {
		if tasksOf(d) {
			d.TaskInstances.SetTaskInstances(tis)
			if graph != nil {
				d.TaskInstances.SetGraph(graph)
			}
		}
	}, nil, nil
}

// taskGraph returns the cached task graph of a job, fetching it once. The
// rows keep the API order when the graph cannot be loaded.
func (w *Worker) taskGraph(ctx context.Context, client airflow.Client, server, jobID string) []airflow.Task {
	k := graphKey{server: server, jobID: jobID}
	if tasks, ok := w.graphs[k]; ok {
		return tasks
	}
	tasks, err := client.ListTasks(ctx, jobID)
	if err != nil {
		logging.Warn("Worker", "listing tasks of %s failed: %v", jobID, err)
		return nil
	}
	w.graphs[k] = tasks
	return tasks
}

func (w *Worker) fetchLogs(ctx context.Context, client airflow.Client, c model.FetchLogs) (string, error) {
	key := cache.Key{Server: c.Server, JobID: c.JobID, RunID: c.RunID, TaskID: c.TaskID, Attempt: c.Attempt}
	useCache := c.Cacheable && w.cache != nil
	if useCache {
		text, ok, err := w.cache.Get(ctx, key)
		if err != nil {
			logging.Warn("Worker", "log cache read failed: %v", err)
		} else if ok {
			return text, nil
		}
	}

	text, err := client.GetLogs(ctx, c.JobID, c.RunID, c.TaskID, c.Attempt)
	if err != nil {
		return "", err
	}
	if useCache {
		if err := w.cache.Put(ctx, key, text); err != nil {
			logging.Warn("Worker", "log cache write failed: %v", err)
		}
	}
	return text, nil
}

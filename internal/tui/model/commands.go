package model

import (
	"fmt"

	"github.com/terakael/flowrs/internal/airflow"
)

// Stamp is attached to every command when it is enqueued. Generation and
// Server identify the server context the command was issued in; ID
// correlates log lines for one command.
type Stamp struct {
	Generation uint64
	Server     string
	ID         string
}

// Tag returns the stamp. Commands embed Stamp to satisfy Command.
func (s Stamp) Tag() Stamp { return s }

// Command is a request from the UI to the worker. The set of variants is
// closed; see the types below.
type Command interface {
	// Name is the operation name shown in error banners.
	Name() string
	// Target is the id of the resource the command acts on.
	Target() string
	Tag() Stamp
	withStamp(Stamp) Command
}

// Stamped returns cmd carrying stamp s.
func Stamped(cmd Command, s Stamp) Command {
	return cmd.withStamp(s)
}

// Mutation is implemented by commands that change remote state. They are
// executed even when their server context is no longer current.
type Mutation interface {
	Command
	mutates()
}

// ---- Server commands ----

// SwitchServer makes Server the active server and loads its jobs.
type SwitchServer struct {
	Stamp
	Server string
}

func (c SwitchServer) Name() string   { return "SwitchServer" }
func (c SwitchServer) Target() string { return c.Server }
func (c SwitchServer) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Job commands ----

// FetchJobs loads all jobs of the active server.
type FetchJobs struct {
	Stamp
}

func (c FetchJobs) Name() string   { return "FetchJobs" }
func (c FetchJobs) Target() string { return c.Server }
func (c FetchJobs) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ToggleJobPause sets the paused flag of a job. Prior is the value shown
// before the optimistic update.
type ToggleJobPause struct {
	Stamp
	JobID  string
	Paused bool
	Prior  bool
}

func (c ToggleJobPause) Name() string   { return "ToggleJobPause" }
func (c ToggleJobPause) Target() string { return c.JobID }
func (c ToggleJobPause) mutates()       {}
func (c ToggleJobPause) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// FetchJobCode loads the source of a job's DAG file.
type FetchJobCode struct {
	Stamp
	Job airflow.Job
}

func (c FetchJobCode) Name() string   { return "FetchJobCode" }
func (c FetchJobCode) Target() string { return c.Job.ID }
func (c FetchJobCode) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Job run commands ----

// FetchJobRuns loads the recent runs of a job.
type FetchJobRuns struct {
	Stamp
	JobID string
}

func (c FetchJobRuns) Name() string   { return "FetchJobRuns" }
func (c FetchJobRuns) Target() string { return c.JobID }
func (c FetchJobRuns) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// TriggerJobRun starts a new run. PlaceholderID is the key of the row
// shown until the server answers.
type TriggerJobRun struct {
	Stamp
	JobID         string
	Conf          map[string]any
	PlaceholderID string
}

func (c TriggerJobRun) Name() string   { return "TriggerJobRun" }
func (c TriggerJobRun) Target() string { return c.JobID }
func (c TriggerJobRun) mutates()       {}
func (c TriggerJobRun) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// SetJobRunState marks a run. Prior is the state shown before the
// optimistic update.
type SetJobRunState struct {
	Stamp
	JobID string
	RunID string
	State airflow.RunState
	Prior airflow.RunState
}

func (c SetJobRunState) Name() string   { return "SetJobRunState" }
func (c SetJobRunState) Target() string { return c.RunID }
func (c SetJobRunState) mutates()       {}
func (c SetJobRunState) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ClearJobRun clears every task of a run so the scheduler re-runs it.
type ClearJobRun struct {
	Stamp
	JobID string
	RunID string
}

func (c ClearJobRun) Name() string   { return "ClearJobRun" }
func (c ClearJobRun) Target() string { return c.RunID }
func (c ClearJobRun) mutates()       {}
func (c ClearJobRun) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Task instance commands ----

// FetchTaskInstances loads the task instances of a run.
type FetchTaskInstances struct {
	Stamp
	JobID string
	RunID string
}

func (c FetchTaskInstances) Name() string   { return "FetchTaskInstances" }
func (c FetchTaskInstances) Target() string { return c.RunID }
func (c FetchTaskInstances) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// SetTaskInstanceState marks a task instance. Key is the row key, which
// differs from TaskID for mapped tasks.
type SetTaskInstanceState struct {
	Stamp
	JobID  string
	RunID  string
	TaskID string
	Key    string
	State  airflow.RunState
	Prior  airflow.RunState
}

func (c SetTaskInstanceState) Name() string   { return "SetTaskInstanceState" }
func (c SetTaskInstanceState) Target() string { return c.Key }
func (c SetTaskInstanceState) mutates()       {}
func (c SetTaskInstanceState) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ClearTaskInstance clears one task so the scheduler re-runs it.
type ClearTaskInstance struct {
	Stamp
	JobID  string
	RunID  string
	TaskID string
}

func (c ClearTaskInstance) Name() string   { return "ClearTaskInstance" }
func (c ClearTaskInstance) Target() string { return c.TaskID }
func (c ClearTaskInstance) mutates()       {}
func (c ClearTaskInstance) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Log commands ----

// FetchLogs loads the log of one attempt. Attempts is the total number of
// attempts of the task when the command was issued. Cacheable is set when
// the attempt has finished and its log can no longer change.
type FetchLogs struct {
	Stamp
	JobID     string
	RunID     string
	TaskID    string
	Attempt   int
	Attempts  int
	Cacheable bool
}

func (c FetchLogs) Name() string { return "FetchLogs" }
func (c FetchLogs) Target() string {
	return fmt.Sprintf("%s#%d", c.TaskID, c.Attempt)
}
func (c FetchLogs) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// CopyToClipboard puts Text on the system clipboard.
type CopyToClipboard struct {
	Stamp
	Label string
	Text  string
}

func (c CopyToClipboard) Name() string   { return "CopyToClipboard" }
func (c CopyToClipboard) Target() string { return c.Label }
func (c CopyToClipboard) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// EditLog opens Text in the user's editor. The worker waits until the
// editor exits.
type EditLog struct {
	Stamp
	TaskID  string
	Attempt int
	Text    string
}

func (c EditLog) Name() string { return "EditLog" }
func (c EditLog) Target() string {
	return fmt.Sprintf("%s#%d", c.TaskID, c.Attempt)
}
func (c EditLog) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Browser ----

// OpenInBrowser shows Item in the Airflow web UI. ServerName, when set,
// overrides the server the command was issued on.
type OpenInBrowser struct {
	Stamp
	ServerName string
	Item       airflow.WebTarget
}

func (c OpenInBrowser) Name() string { return "OpenInBrowser" }
func (c OpenInBrowser) Target() string {
	for _, s := range []string{c.Item.TaskID, c.Item.RunID, c.Item.JobID, c.ServerName} {
		if s != "" {
			return s
		}
	}
	return c.Server
}
func (c OpenInBrowser) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// ---- Server resources ----

// FetchVariables loads the variables of the active server.
type FetchVariables struct {
	Stamp
}

func (c FetchVariables) Name() string   { return "FetchVariables" }
func (c FetchVariables) Target() string { return c.Server }
func (c FetchVariables) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// FetchConnections loads the connections of the active server.
type FetchConnections struct {
	Stamp
}

func (c FetchConnections) Name() string   { return "FetchConnections" }
func (c FetchConnections) Target() string { return c.Server }
func (c FetchConnections) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

// FetchImportErrors loads the DAG files the scheduler could not parse.
type FetchImportErrors struct {
	Stamp
}

func (c FetchImportErrors) Name() string   { return "FetchImportErrors" }
func (c FetchImportErrors) Target() string { return c.Server }
func (c FetchImportErrors) withStamp(s Stamp) Command {
	c.Stamp = s
	return c
}

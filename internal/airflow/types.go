package airflow

import (
	"fmt"
	"time"
)

// RunState is the state of a job run or task instance as reported by the
// API. Task instances use a superset of the run states.
type RunState string

const (
	StateNone             RunState = ""
	StateQueued           RunState = "queued"
	StateRunning          RunState = "running"
	StateSuccess          RunState = "success"
	StateFailed           RunState = "failed"
	StateScheduled        RunState = "scheduled"
	StateUpForRetry       RunState = "up_for_retry"
	StateUpForReschedule  RunState = "up_for_reschedule"
	StateUpstreamFailed   RunState = "upstream_failed"
	StateSkipped          RunState = "skipped"
	StateDeferred         RunState = "deferred"
	StateRestarting       RunState = "restarting"
	StateRemoved          RunState = "removed"
	StateRestartRequested RunState = "restart_requested"
)

// MarkableRunStates are the states a job run may be set to by hand.
var MarkableRunStates = []RunState{StateSuccess, StateFailed, StateQueued}

// MarkableTaskStates are the states a task instance may be set to by hand.
var MarkableTaskStates = []RunState{StateSuccess, StateFailed, StateSkipped}

// Terminal reports whether no further transitions are expected.
func (s RunState) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateUpstreamFailed, StateSkipped, StateRemoved:
		return true
	default:
		return false
	}
}

func (s RunState) String() string {
	if s == StateNone {
		return "none"
	}
	return string(s)
}

// Job is a DAG summary.
type Job struct {
	ID              string
	Paused          bool
	Active          bool
	Description     string
	Owners          []string
	Tags            []string
	Schedule        string
	Fileloc         string
	FileToken       string
	NextRun         *time.Time
	HasImportErrors bool
}

// Key identifies the job across refreshes.
func (j Job) Key() string { return j.ID }

// JobRun is one execution of a job.
type JobRun struct {
	JobID       string
	RunID       string
	State       RunState
	RunType     string
	LogicalDate *time.Time
	StartDate   *time.Time
	EndDate     *time.Time
	External    bool
	Note        string
	Conf        map[string]any
}

// Key identifies the run within its job.
func (r JobRun) Key() string { return r.RunID }

// Duration is the run's wall time so far, zero when it has not started.
func (r JobRun) Duration(now time.Time) time.Duration {
	return span(r.StartDate, r.EndDate, now)
}

// TaskInstance is one step of a job run.
type TaskInstance struct {
	JobID     string
	RunID     string
	TaskID    string
	MapIndex  int
	State     RunState
	TryNumber int
	MaxTries  int
	Operator  string
	StartDate *time.Time
	EndDate   *time.Time
}

// Key identifies the task instance within its run. Mapped instances share a
// task id and differ by map index.
func (t TaskInstance) Key() string {
	if t.MapIndex >= 0 {
		return fmt.Sprintf("%s[%d]", t.TaskID, t.MapIndex)
	}
	return t.TaskID
}

// Attempts is the number of log attempts that can be requested, at least one.
func (t TaskInstance) Attempts() int {
	if t.TryNumber < 1 {
		return 1
	}
	return t.TryNumber
}

// Duration is the instance's wall time so far.
func (t TaskInstance) Duration(now time.Time) time.Duration {
	return span(t.StartDate, t.EndDate, now)
}

func span(start, end *time.Time, now time.Time) time.Duration {
	if start == nil {
		return 0
	}
	if end == nil {
		return now.Sub(*start)
	}
	return end.Sub(*start)
}

// Variable is an Airflow variable. Name is the variable key and Value the
// raw string as stored.
type Variable struct {
	Name        string
	Value       string
	Description string
}

// Key identifies the variable.
func (v Variable) Key() string { return v.Name }

// Connection is an Airflow connection. The API never returns passwords.
type Connection struct {
	ID          string
	Type        string
	Host        string
	Schema      string
	Login       string
	Port        int
	Extra       string
	Description string
}

// Key identifies the connection.
func (c Connection) Key() string { return c.ID }

// ImportError is a DAG file the scheduler failed to parse.
type ImportError struct {
	ID         int
	Timestamp  *time.Time
	Filename   string
	StackTrace string
}

// Key identifies the import error.
func (e ImportError) Key() string { return fmt.Sprintf("%d", e.ID) }

// Task is a node of a job's task graph.
type Task struct {
	ID         string
	Downstream []string
}

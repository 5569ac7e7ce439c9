package airflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire types cover both API generations. Fields that only exist in one of
// them are optional.

type dagCollection struct {
	Dags         []dagWire `json:"dags"`
	TotalEntries int       `json:"total_entries"`
}

type tagWire struct {
	Name string `json:"name"`
}

type scheduleIntervalWire struct {
	Type  string `json:"__type"`
	Value string `json:"value"`
	Days  int    `json:"days"`
	Secs  int    `json:"seconds"`
}

type dagWire struct {
	DagID                 string                `json:"dag_id"`
	IsPaused              *bool                 `json:"is_paused"`
	IsActive              *bool                 `json:"is_active"`
	IsStale               *bool                 `json:"is_stale"`
	Description           *string               `json:"description"`
	Owners                []string              `json:"owners"`
	Tags                  []tagWire             `json:"tags"`
	ScheduleInterval      *scheduleIntervalWire `json:"schedule_interval"`
	TimetableDescription  *string               `json:"timetable_description"`
	TimetableSummary      *string               `json:"timetable_summary"`
	Fileloc               string                `json:"fileloc"`
	FileToken             string                `json:"file_token"`
	NextDagrun            *time.Time            `json:"next_dagrun"`
	NextDagrunLogicalDate *time.Time            `json:"next_dagrun_logical_date"`
	HasImportErrors       bool                  `json:"has_import_errors"`
}

func (d dagWire) toJob() Job {
	job := Job{
		ID:              d.DagID,
		Owners:          d.Owners,
		Fileloc:         d.Fileloc,
		FileToken:       d.FileToken,
		HasImportErrors: d.HasImportErrors,
		Active:          true,
	}
	if d.IsPaused != nil {
		job.Paused = *d.IsPaused
	}
	switch {
	case d.IsActive != nil:
		job.Active = *d.IsActive
	case d.IsStale != nil:
		job.Active = !*d.IsStale
	}
	if d.Description != nil {
		job.Description = *d.Description
	}
	for _, t := range d.Tags {
		job.Tags = append(job.Tags, t.Name)
	}
	job.Schedule = d.schedule()
	job.NextRun = d.NextDagrun
	if job.NextRun == nil {
		job.NextRun = d.NextDagrunLogicalDate
	}
	return job
}

func (d dagWire) schedule() string {
	switch {
	case d.TimetableSummary != nil && *d.TimetableSummary != "":
		return *d.TimetableSummary
	case d.ScheduleInterval != nil && d.ScheduleInterval.Value != "":
		return d.ScheduleInterval.Value
	case d.ScheduleInterval != nil && d.ScheduleInterval.Type == "TimeDelta":
		return (time.Duration(d.ScheduleInterval.Days)*24*time.Hour + time.Duration(d.ScheduleInterval.Secs)*time.Second).String()
	case d.TimetableDescription != nil:
		return *d.TimetableDescription
	default:
		return ""
	}
}

type dagRunCollection struct {
	DagRuns      []dagRunWire `json:"dag_runs"`
	TotalEntries int          `json:"total_entries"`
}

type dagRunWire struct {
	DagRunID        string         `json:"dag_run_id"`
	DagID           string         `json:"dag_id"`
	State           RunState       `json:"state"`
	RunType         string         `json:"run_type"`
	LogicalDate     *time.Time     `json:"logical_date"`
	ExecutionDate   *time.Time     `json:"execution_date"`
	RunAfter        *time.Time     `json:"run_after"`
	StartDate       *time.Time     `json:"start_date"`
	EndDate         *time.Time     `json:"end_date"`
	ExternalTrigger bool           `json:"external_trigger"`
	TriggeredBy     string         `json:"triggered_by"`
	Note            *string        `json:"note"`
	Conf            map[string]any `json:"conf"`
}

func (r dagRunWire) toJobRun() JobRun {
	run := JobRun{
		JobID:       r.DagID,
		RunID:       r.DagRunID,
		State:       r.State,
		RunType:     r.RunType,
		LogicalDate: r.LogicalDate,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		External:    r.ExternalTrigger || r.TriggeredBy == "rest_api" || r.TriggeredBy == "ui",
		Conf:        r.Conf,
	}
	if run.LogicalDate == nil {
		run.LogicalDate = r.ExecutionDate
	}
	if run.LogicalDate == nil {
		run.LogicalDate = r.RunAfter
	}
	if r.Note != nil {
		run.Note = *r.Note
	}
	return run
}

type taskInstanceCollection struct {
	TaskInstances []taskInstanceWire `json:"task_instances"`
	TotalEntries  int                `json:"total_entries"`
}

type taskInstanceWire struct {
	TaskID    string     `json:"task_id"`
	DagID     string     `json:"dag_id"`
	DagRunID  string     `json:"dag_run_id"`
	MapIndex  *int       `json:"map_index"`
	State     *RunState  `json:"state"`
	TryNumber int        `json:"try_number"`
	MaxTries  int        `json:"max_tries"`
	Operator  *string    `json:"operator"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

func (t taskInstanceWire) toTaskInstance() TaskInstance {
	ti := TaskInstance{
		JobID:     t.DagID,
		RunID:     t.DagRunID,
		TaskID:    t.TaskID,
		MapIndex:  -1,
		TryNumber: t.TryNumber,
		MaxTries:  t.MaxTries,
		StartDate: t.StartDate,
		EndDate:   t.EndDate,
	}
	if t.MapIndex != nil {
		ti.MapIndex = *t.MapIndex
	}
	if t.State != nil {
		ti.State = *t.State
	}
	if t.Operator != nil {
		ti.Operator = *t.Operator
	}
	return ti
}

type logWire struct {
	Content           json.RawMessage `json:"content"`
	ContinuationToken *string         `json:"continuation_token"`
}

// text flattens the log body. v1 returns a string; v2 returns a list of
// structured entries with an "event" field.
func (l logWire) text() (string, error) {
	if len(l.Content) == 0 || string(l.Content) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(l.Content, &s); err == nil {
		return s, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(l.Content, &entries); err != nil {
		return "", fmt.Errorf("unexpected log content: %w", err)
	}
	var b strings.Builder
	for _, raw := range entries {
		var line string
		if err := json.Unmarshal(raw, &line); err == nil {
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		var entry struct {
			Event     string `json:"event"`
			Timestamp string `json:"timestamp"`
			Level     string `json:"level"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Event == "" {
			b.Write(raw)
			b.WriteByte('\n')
			continue
		}
		if entry.Timestamp != "" {
			b.WriteString("[" + entry.Timestamp + "] ")
		}
		if entry.Level != "" {
			b.WriteString(strings.ToUpper(entry.Level) + " - ")
		}
		b.WriteString(entry.Event)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

type dagSourceWire struct {
	Content string `json:"content"`
}

type taskCollection struct {
	Tasks        []taskWire `json:"tasks"`
	TotalEntries int        `json:"total_entries"`
}

type taskWire struct {
	TaskID            string   `json:"task_id"`
	DownstreamTaskIDs []string `json:"downstream_task_ids"`
}

type variableCollection struct {
	Variables    []variableWire `json:"variables"`
	TotalEntries int            `json:"total_entries"`
}

type variableWire struct {
	Key         string  `json:"key"`
	Value       *string `json:"value"`
	Description *string `json:"description"`
}

func (v variableWire) toVariable() Variable {
	out := Variable{Name: v.Key}
	if v.Value != nil {
		out.Value = *v.Value
	}
	if v.Description != nil {
		out.Description = *v.Description
	}
	return out
}

type connectionCollection struct {
	Connections  []connectionWire `json:"connections"`
	TotalEntries int              `json:"total_entries"`
}

type connectionWire struct {
	ConnectionID string  `json:"connection_id"`
	ConnType     string  `json:"conn_type"`
	Host         *string `json:"host"`
	Schema       *string `json:"schema"`
	Login        *string `json:"login"`
	Port         *int    `json:"port"`
	Extra        *string `json:"extra"`
	Description  *string `json:"description"`
}

func (c connectionWire) toConnection() Connection {
	out := Connection{ID: c.ConnectionID, Type: c.ConnType}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	out.Host = deref(c.Host)
	out.Schema = deref(c.Schema)
	out.Login = deref(c.Login)
	out.Extra = deref(c.Extra)
	out.Description = deref(c.Description)
	if c.Port != nil {
		out.Port = *c.Port
	}
	return out
}

type importErrorCollection struct {
	ImportErrors []importErrorWire `json:"import_errors"`
	TotalEntries int               `json:"total_entries"`
}

type importErrorWire struct {
	ImportErrorID int        `json:"import_error_id"`
	Timestamp     *time.Time `json:"timestamp"`
	Filename      string     `json:"filename"`
	StackTrace    string     `json:"stack_trace"`
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terakael/flowrs/internal/airflow"
)

func keys(p interface {
	Update(Event) (*Event, []Command)
}, ks ...string) (fallbacks []*Event, cmds []Command) {
	for _, k := range ks {
		fb, c := p.Update(KeyEvent(k))
		fallbacks = append(fallbacks, fb)
		cmds = append(cmds, c...)
	}
	return fallbacks, cmds
}

func jobsPanel() *JobsPanel {
	p := &JobsPanel{}
	p.SetJobs([]airflow.Job{
		{ID: "etl_daily", Tags: []string{"etl"}},
		{ID: "report", Paused: true},
		{ID: "cleanup"},
	})
	return p
}

func runsPanel() *JobRunsPanel {
	p := &JobRunsPanel{}
	p.Open(airflow.Job{ID: "etl"})
	p.SetRuns([]airflow.JobRun{
		{JobID: "etl", RunID: "run123", State: airflow.StateRunning},
		{JobID: "etl", RunID: "run122", State: airflow.StateFailed},
	})
	return p
}

func TestPanelUpdateIsDeterministic(t *testing.T) {
	events := []string{"j", "p", "/", "e", "t", "enter", "tab", "enter", "k"}
	a := jobsPanel()
	b := jobsPanel()
	for _, k := range events {
		fa, ca := a.Update(KeyEvent(k))
		fb, cb := b.Update(KeyEvent(k))
		assert.Equal(t, fa, fb, "fallback for %q", k)
		assert.Equal(t, ca, cb, "commands for %q", k)
	}
	assert.Equal(t, a.clone(), b.clone())
}

func TestTickIsAlwaysFallback(t *testing.T) {
	panels := []interface {
		Update(Event) (*Event, []Command)
	}{&ConfigPanel{}, jobsPanel(), runsPanel(), &TaskInstancesPanel{}, &LogsPanel{}}
	for _, p := range panels {
		fb, cmds := p.Update(TickEvent())
		require.NotNil(t, fb)
		assert.True(t, fb.IsTick())
		assert.Empty(t, cmds)
	}
}

func TestConfigPanel_EnterSwitchesServer(t *testing.T) {
	p := &ConfigPanel{}
	p.SetServers(servers("dev", "prod"))
	fbs, cmds := keys(p, "j", "enter")
	require.Len(t, cmds, 1)
	assert.Equal(t, SwitchServer{Server: "prod"}, cmds[0])
	require.NotNil(t, fbs[1])
	assert.Equal(t, "enter", fbs[1].Key)
}

func TestJobsPanel_PauseIsOptimistic(t *testing.T) {
	p := jobsPanel()
	_, cmds := keys(p, "j", "p")
	require.Len(t, cmds, 1)
	assert.Equal(t, ToggleJobPause{JobID: "report", Paused: false, Prior: true}, cmds[0])
	job, _ := p.Find("report")
	assert.False(t, job.Paused)

	assert.False(t, p.RevertPaused("report", true, true), "revert is skipped once the value changed")
	assert.True(t, p.RevertPaused("report", false, true))
	job, _ = p.Find("report")
	assert.True(t, job.Paused)
}

func TestJobsPanel_EnterOpensRuns(t *testing.T) {
	p := jobsPanel()
	fbs, cmds := keys(p, "G", "enter")
	assert.Equal(t, []Command{FetchJobRuns{JobID: "cleanup"}}, cmds)
	require.NotNil(t, fbs[1])
}

func TestJobsPanel_FilterKeepsSelectionByKey(t *testing.T) {
	p := jobsPanel()
	p.List.Select("cleanup")

	fbs, cmds := keys(p, "/", "c", "l", "n")
	assert.Empty(t, cmds)
	for _, fb := range fbs {
		assert.Nil(t, fb, "filter input is consumed")
	}
	assert.True(t, p.Filter.Editing)
	require.Equal(t, 1, p.List.Len())
	sel, _ := p.List.Selected()
	assert.Equal(t, "cleanup", sel.ID)

	keys(p, "enter")
	assert.False(t, p.Filter.Editing)
	assert.Equal(t, "cln", p.Filter.Text)

	keys(p, "/", "esc")
	assert.Empty(t, p.Filter.Text)
	assert.Equal(t, 3, p.List.Len())
	sel, _ = p.List.Selected()
	assert.Equal(t, "cleanup", sel.ID)
}

func TestJobsPanel_FilterMatchesTags(t *testing.T) {
	p := jobsPanel()
	keys(p, "/", "e", "t", "l", "enter")
	require.Equal(t, 1, p.List.Len())
	assert.Equal(t, "etl_daily", p.List.Items()[0].ID)
}

func TestJobsPanel_CycleTab(t *testing.T) {
	p := jobsPanel()
	p.CycleTab()
	assert.Equal(t, JobsActive, p.Tab)
	assert.Equal(t, 2, p.List.Len())
	p.CycleTab()
	assert.Equal(t, JobsPaused, p.Tab)
	require.Equal(t, 1, p.List.Len())
	assert.Equal(t, "report", p.List.Items()[0].ID)
	p.CycleTab()
	assert.Equal(t, JobsAll, p.Tab)
}

func TestJobsPanel_HelpPopupSwallowsNextKey(t *testing.T) {
	p := jobsPanel()
	keys(p, "?")
	assert.Equal(t, PopupHelp, p.Popup.Kind)
	fbs, _ := keys(p, "q")
	assert.Nil(t, fbs[0], "q closes help instead of quitting")
	assert.False(t, p.Popup.Open())
}

func TestJobRunsPanel_MarkIsOptimistic(t *testing.T) {
	p := runsPanel()
	_, cmds := keys(p, "m")
	require.Empty(t, cmds)
	assert.Equal(t, PopupMarkRun, p.Popup.Kind)
	assert.Equal(t, "run123", p.Popup.Target)

	// success is the first choice
	_, cmds = keys(p, "enter")
	require.Len(t, cmds, 1)
	assert.Equal(t, SetJobRunState{JobID: "etl", RunID: "run123", State: airflow.StateSuccess, Prior: airflow.StateRunning}, cmds[0])
	run, _ := p.Find("run123")
	assert.Equal(t, airflow.StateSuccess, run.State)
	assert.False(t, p.Popup.Open())

	assert.True(t, p.RevertRunState("run123", airflow.StateSuccess, airflow.StateRunning))
	run, _ = p.Find("run123")
	assert.Equal(t, airflow.StateRunning, run.State)
}

func TestJobRunsPanel_MarkSameStateEmitsNothing(t *testing.T) {
	p := runsPanel()
	_, cmds := keys(p, "j", "m", "j", "enter")
	assert.Empty(t, cmds, "run122 is already failed")
}

func TestJobRunsPanel_TriggerAddsPlaceholder(t *testing.T) {
	p := runsPanel()
	_, cmds := keys(p, "t")
	assert.Empty(t, cmds)
	assert.Equal(t, PopupConfirmTrigger, p.Popup.Kind)

	_, cmds = keys(p, "y")
	require.Len(t, cmds, 1)
	trig, ok := cmds[0].(TriggerJobRun)
	require.True(t, ok)
	assert.Equal(t, "etl", trig.JobID)
	assert.True(t, IsPendingRun(trig.PlaceholderID))

	sel, _ := p.List.Selected()
	assert.Equal(t, trig.PlaceholderID, sel.RunID)
	assert.Equal(t, 3, p.List.Len())

	// a refresh that lands first keeps the placeholder on top
	p.SetRuns([]airflow.JobRun{{JobID: "etl", RunID: "run123", State: airflow.StateRunning}})
	assert.Equal(t, trig.PlaceholderID, p.List.Items()[0].RunID)

	p.ResolvePlaceholder(trig.PlaceholderID, airflow.JobRun{JobID: "etl", RunID: "manual__new", State: airflow.StateQueued})
	assert.Equal(t, "manual__new", p.List.Items()[0].RunID)
	sel, _ = p.List.Selected()
	assert.Equal(t, "manual__new", sel.RunID)
	_, found := p.Find(trig.PlaceholderID)
	assert.False(t, found)
}

func TestJobRunsPanel_TriggerCancelled(t *testing.T) {
	p := runsPanel()
	_, cmds := keys(p, "t", "n")
	assert.Empty(t, cmds)
	assert.False(t, p.Popup.Open())
	assert.Equal(t, 2, p.List.Len())
}

func TestJobRunsPanel_RemovePlaceholder(t *testing.T) {
	p := runsPanel()
	_, cmds := keys(p, "t", "enter")
	trig := cmds[0].(TriggerJobRun)
	assert.True(t, p.RemovePlaceholder(trig.PlaceholderID))
	assert.Equal(t, 2, p.List.Len())
	assert.False(t, p.RemovePlaceholder(trig.PlaceholderID))
}

func TestJobRunsPanel_PlaceholderCannotBeOpened(t *testing.T) {
	p := runsPanel()
	keys(p, "t", "y")
	fbs, cmds := keys(p, "enter", "m")
	assert.Nil(t, fbs[0])
	assert.Empty(t, cmds)
	assert.False(t, p.Popup.Open())
}

func TestJobRunsPanel_ClearAndCode(t *testing.T) {
	p := runsPanel()
	p.Job.FileToken = "tok"
	_, cmds := keys(p, "c", "y")
	assert.Equal(t, []Command{ClearJobRun{JobID: "etl", RunID: "run123"}}, cmds)

	_, cmds = keys(p, "v")
	assert.Equal(t, []Command{FetchJobCode{Job: airflow.Job{ID: "etl", FileToken: "tok"}}}, cmds)
	assert.True(t, p.CodeLoading)
	assert.Equal(t, PopupCode, p.Popup.Kind)

	p.SetCode("print(1)")
	keys(p, "j", "j", "k")
	assert.Equal(t, 1, p.CodeScroll)
	keys(p, "esc")
	assert.False(t, p.Popup.Open())

	_, cmds = keys(p, "v")
	assert.Empty(t, cmds, "code is only fetched once per job")
}

func TestJobRunsPanel_EnterOpensTasks(t *testing.T) {
	p := runsPanel()
	fbs, cmds := keys(p, "j", "enter")
	assert.Equal(t, []Command{FetchTaskInstances{JobID: "etl", RunID: "run122"}}, cmds)
	assert.NotNil(t, fbs[1])
}

func TestJobRunsPanel_CycleTab(t *testing.T) {
	p := runsPanel()
	p.CycleTab()
	assert.Equal(t, RunsDetails, p.View)
	p.CycleTab()
	assert.Equal(t, RunsList, p.View)
}

func TestTaskInstancesPanel_EnterFetchesAllAttemptsNewestFirst(t *testing.T) {
	p := &TaskInstancesPanel{}
	p.Open("etl", "run1")
	p.SetTaskInstances([]airflow.TaskInstance{
		{JobID: "etl", RunID: "run1", TaskID: "extract", MapIndex: -1, State: airflow.StateRunning, TryNumber: 3},
	})
	_, cmds := keys(p, "enter")
	require.Len(t, cmds, 3)
	assert.Equal(t, FetchLogs{JobID: "etl", RunID: "run1", TaskID: "extract", Attempt: 3, Attempts: 3, Cacheable: false}, cmds[0])
	assert.Equal(t, FetchLogs{JobID: "etl", RunID: "run1", TaskID: "extract", Attempt: 2, Attempts: 3, Cacheable: true}, cmds[1])
	assert.Equal(t, FetchLogs{JobID: "etl", RunID: "run1", TaskID: "extract", Attempt: 1, Attempts: 3, Cacheable: true}, cmds[2])
}

func TestTaskInstancesPanel_MarkMappedInstance(t *testing.T) {
	p := &TaskInstancesPanel{}
	p.Open("etl", "run1")
	p.SetTaskInstances([]airflow.TaskInstance{
		{TaskID: "load", MapIndex: 0, State: airflow.StateFailed},
		{TaskID: "load", MapIndex: 1, State: airflow.StateFailed},
	})
	_, cmds := keys(p, "j", "m", "enter")
	require.Len(t, cmds, 1)
	assert.Equal(t, SetTaskInstanceState{
		JobID: "etl", RunID: "run1", TaskID: "load", Key: "load[1]",
		State: airflow.StateSuccess, Prior: airflow.StateFailed,
	}, cmds[0])
	ti, _ := p.Find("load[0]")
	assert.Equal(t, airflow.StateFailed, ti.State)
	ti, _ = p.Find("load[1]")
	assert.Equal(t, airflow.StateSuccess, ti.State)
}

func TestTaskInstancesPanel_MarkSelectedTasks(t *testing.T) {
	p := &TaskInstancesPanel{}
	p.Open("etl", "run1")
	p.SetTaskInstances([]airflow.TaskInstance{
		{TaskID: "load", MapIndex: 0, State: airflow.StateFailed},
		{TaskID: "load", MapIndex: 1, State: airflow.StateFailed},
		{TaskID: "report", MapIndex: -1, State: airflow.StateUpstreamFailed},
	})
	keys(p, "M", "j", "j", "m")
	require.Equal(t, PopupMarkTask, p.Popup.Kind)
	assert.Equal(t, "2 tasks", p.Popup.Target)
	assert.Equal(t, []string{"load[0]", "report"}, p.Popup.Targets)

	_, cmds := keys(p, "enter")
	require.Len(t, cmds, 2)
	assert.Equal(t, "load[0]", cmds[0].(SetTaskInstanceState).Key)
	assert.Equal(t, "report", cmds[1].(SetTaskInstanceState).Key)
	assert.Empty(t, p.Selected)
	ti, _ := p.Find("load[1]")
	assert.Equal(t, airflow.StateFailed, ti.State)
}

func TestTaskInstancesPanel_CycleTabFilters(t *testing.T) {
	p := &TaskInstancesPanel{}
	p.Open("etl", "run1")
	p.SetTaskInstances([]airflow.TaskInstance{
		{TaskID: "a", MapIndex: -1, State: airflow.StateSuccess},
		{TaskID: "b", MapIndex: -1, State: airflow.StateFailed},
		{TaskID: "c", MapIndex: -1, State: airflow.StateRunning},
	})
	p.CycleTab()
	require.Equal(t, 1, p.List.Len())
	assert.Equal(t, "b", p.List.Items()[0].TaskID)
	p.CycleTab()
	require.Equal(t, 1, p.List.Len())
	assert.Equal(t, "c", p.List.Items()[0].TaskID)
}

func TestLogsPanel_Attempts(t *testing.T) {
	p := &LogsPanel{}
	p.Open("etl", "run1", "extract", 3)
	assert.Equal(t, 3, p.Current)

	p.SetAttempt(3, "third")
	p.SetAttempt(1, "first")
	text, ok := p.Text()
	require.True(t, ok)
	assert.Equal(t, "third", text)

	p.CycleTab()
	assert.Equal(t, 1, p.Current)
	p.CycleTab()
	assert.Equal(t, 2, p.Current)
	_, ok = p.Text()
	assert.False(t, ok)

	_, cmds := keys(p, "1")
	assert.Empty(t, cmds)
	assert.Equal(t, 1, p.Current)
	keys(p, "7")
	assert.Equal(t, 1, p.Current, "attempt beyond range is ignored")
}

func TestLogsPanel_CopyAndScroll(t *testing.T) {
	p := &LogsPanel{}
	p.Open("etl", "run1", "extract", 1)
	_, cmds := keys(p, "y")
	assert.Empty(t, cmds, "nothing to copy before the log arrived")

	p.SetAttempt(1, "log text")
	_, cmds = keys(p, "y")
	assert.Equal(t, []Command{CopyToClipboard{Label: "extract attempt 1", Text: "log text"}}, cmds)

	keys(p, "j", "j", "ctrl+d")
	assert.Equal(t, 12, p.Scroll)
	keys(p, "G")
	assert.Equal(t, ScrollEnd, p.Scroll)
	keys(p, "g")
	assert.Zero(t, p.Scroll)

	fbs, _ := keys(p, "esc")
	require.NotNil(t, fbs[0])
	assert.Equal(t, "esc", fbs[0].Key)
}

func TestLogsPanel_FailedAttempt(t *testing.T) {
	p := &LogsPanel{}
	p.Open("etl", "r1", "load", 2)
	p.SetFailed(2, "not found")

	msg, ok := p.FailedText()
	require.True(t, ok)
	assert.Equal(t, "not found", msg)

	clone := p.clone()
	_, cmds := keys(p, "r")
	require.Len(t, cmds, 1)
	_, ok = p.FailedText()
	assert.False(t, ok, "refresh shows loading again")
	_, ok = clone.FailedText()
	assert.True(t, ok, "snapshot keeps its own copy")

	p.SetAttempt(1, "ok")
	p.SetFailed(1, "late failure")
	p.Current = 1
	_, ok = p.FailedText()
	assert.False(t, ok, "loaded attempts are not marked failed")

	p.SetFailed(2, "boom")
	p.SetAttempt(2, "second try")
	p.Current = 2
	_, ok = p.FailedText()
	assert.False(t, ok)
}

func TestJobsPanel_Sections(t *testing.T) {
	p := jobsPanel()
	_, cmds := keys(p, "]")
	assert.Equal(t, SectionVariables, p.Section)
	assert.Equal(t, []Command{FetchVariables{}}, cmds)
	assert.True(t, p.SectionLoading)

	p.SetVariables([]airflow.Variable{{Name: "env", Value: `{"a":1}`}, {Name: "region", Value: "eu"}})
	assert.False(t, p.SectionLoading)
	_, cmds = keys(p, "]")
	assert.Equal(t, SectionConnections, p.Section)
	assert.Equal(t, []Command{FetchConnections{}}, cmds)

	_, cmds = keys(p, "[")
	assert.Equal(t, SectionVariables, p.Section)
	assert.Empty(t, cmds, "variables are already loaded")

	keys(p, "j", "enter")
	assert.Equal(t, PopupVariable, p.Popup.Kind)
	assert.Equal(t, "region", p.Popup.Target)
	fbs, _ := keys(p, "q")
	assert.Nil(t, fbs[0])
	assert.False(t, p.Popup.Open())

	_, cmds = keys(p, "r")
	assert.Equal(t, []Command{FetchVariables{}}, cmds)
	_, cmds = keys(p, "p")
	assert.Empty(t, cmds, "pause only applies to DAGs")

	keys(p, "[", "tab")
	assert.Equal(t, SectionDAGs, p.Section)
	assert.Equal(t, JobsAll, p.Tab, "tab is handled globally, not by the panel")
}

func TestJobsPanel_FilterAppliesToSection(t *testing.T) {
	p := jobsPanel()
	p.SetConnections([]airflow.Connection{{ID: "pg_main", Type: "postgres"}, {ID: "s3_logs", Type: "aws"}})
	keys(p, "]", "]")
	require.Equal(t, SectionConnections, p.Section)
	keys(p, "/", "a", "w", "s", "enter")
	require.Equal(t, 1, p.Connections.Len())
	assert.Equal(t, "s3_logs", p.Connections.Items()[0].ID)
	keys(p, "enter")
	assert.Equal(t, PopupConnection, p.Popup.Kind)
	assert.Equal(t, "s3_logs", p.Popup.Target)
}

func TestJobsPanel_RefreshLoadsImportErrors(t *testing.T) {
	p := jobsPanel()
	_, cmds := keys(p, "r")
	assert.Equal(t, []Command{FetchJobs{}, FetchImportErrors{}}, cmds)
	assert.True(t, p.Loading)

	p.SetImportErrors(nil)
	assert.NotNil(t, p.ImportErrors, "fetched but empty differs from not fetched")

	_, cmds = keys(p, "i")
	assert.Equal(t, []Command{FetchImportErrors{}}, cmds)
	assert.Equal(t, PopupImportErrors, p.Popup.Kind)
	keys(p, "j", "j", "k")
	assert.Equal(t, 1, p.ImportsScroll)
	keys(p, "esc")
	assert.False(t, p.Popup.Open())
}

func TestOpenInBrowser(t *testing.T) {
	cfg := &ConfigPanel{}
	cfg.SetServers(servers("dev", "prod"))
	_, cmds := keys(cfg, "j", "o")
	assert.Equal(t, []Command{OpenInBrowser{ServerName: "prod"}}, cmds)

	_, cmds = keys(jobsPanel(), "o")
	assert.Equal(t, []Command{OpenInBrowser{Item: airflow.WebTarget{JobID: "etl_daily"}}}, cmds)

	_, cmds = keys(runsPanel(), "j", "o")
	assert.Equal(t, []Command{OpenInBrowser{Item: airflow.WebTarget{JobID: "etl", RunID: "run122"}}}, cmds)

	tasks := &TaskInstancesPanel{}
	tasks.Open("etl", "run1")
	tasks.SetTaskInstances([]airflow.TaskInstance{{TaskID: "load", MapIndex: -1}})
	_, cmds = keys(tasks, "o")
	assert.Equal(t, []Command{OpenInBrowser{Item: airflow.WebTarget{JobID: "etl", RunID: "run1", TaskID: "load"}}}, cmds)
}

func TestJobRunsPanel_MarkSelectedRuns(t *testing.T) {
	p := runsPanel()
	keys(p, "M")
	assert.True(t, p.IsSelected("run123"))
	keys(p, "j", "m")
	require.Equal(t, PopupMarkRun, p.Popup.Kind)
	assert.Equal(t, []string{"run123", "run122"}, p.Popup.Targets)
	assert.Equal(t, "2 runs", p.Popup.Target)

	_, cmds := keys(p, "enter")
	assert.Equal(t, []Command{
		SetJobRunState{JobID: "etl", RunID: "run123", State: airflow.StateSuccess, Prior: airflow.StateRunning},
		SetJobRunState{JobID: "etl", RunID: "run122", State: airflow.StateSuccess, Prior: airflow.StateFailed},
	}, cmds)
	assert.Empty(t, p.Selected)
	for _, id := range []string{"run123", "run122"} {
		run, _ := p.Find(id)
		assert.Equal(t, airflow.StateSuccess, run.State)
	}
}

func TestJobRunsPanel_CancelledMarkDropsSelection(t *testing.T) {
	p := runsPanel()
	keys(p, "M", "M")
	assert.False(t, p.IsSelected("run123"), "M toggles")

	keys(p, "M", "m")
	assert.Equal(t, []string{"run123"}, p.Popup.Targets)
	clone := p.clone()
	keys(p, "esc")
	assert.False(t, p.Popup.Open())
	assert.Empty(t, p.Selected)
	assert.True(t, clone.IsSelected("run123"), "snapshot keeps its own selection")
}

func TestTaskInstancesPanel_GraphOrder(t *testing.T) {
	p := &TaskInstancesPanel{}
	p.Open("etl", "run1")
	p.SetTaskInstances([]airflow.TaskInstance{
		{TaskID: "report", MapIndex: -1},
		{TaskID: "load", MapIndex: -1},
		{TaskID: "orphan", MapIndex: -1},
		{TaskID: "extract", MapIndex: -1},
	})
	p.SetGraph([]airflow.Task{
		{ID: "load", Downstream: []string{"report"}},
		{ID: "extract", Downstream: []string{"load"}},
		{ID: "report"},
	})

	var order []string
	for _, ti := range p.List.Items() {
		order = append(order, ti.TaskID)
	}
	assert.Equal(t, []string{"extract", "load", "report", "orphan"}, order)
	assert.Equal(t, "  └─", p.Prefix["load"])

	sel, _ := p.List.Selected()
	assert.Equal(t, "report", sel.TaskID, "selection follows the row")
}

func TestLogsPanel_EditAndOpen(t *testing.T) {
	p := &LogsPanel{}
	p.Open("etl", "run1", "extract", 2)
	_, cmds := keys(p, "e")
	assert.Empty(t, cmds, "nothing to edit before the log arrived")

	p.SetAttempt(2, "log text")
	_, cmds = keys(p, "e", "o")
	assert.Equal(t, []Command{
		EditLog{TaskID: "extract", Attempt: 2, Text: "log text"},
		OpenInBrowser{Item: airflow.WebTarget{JobID: "etl", RunID: "run1", TaskID: "extract", Attempt: 2}},
	}, cmds)
}

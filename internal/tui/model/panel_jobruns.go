package model

import (
	"fmt"
	"maps"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
)

// PendingRunPrefix starts the key of a placeholder row for a triggered run
// the server has not confirmed yet.
const PendingRunPrefix = "~pending-"

// IsPendingRun reports whether runID is a placeholder key.
func IsPendingRun(runID string) bool {
	return strings.HasPrefix(runID, PendingRunPrefix)
}

// RunsView is the sub-view of the JobRuns panel.
type RunsView int

const (
	RunsList RunsView = iota
	RunsDetails
	runsViewCount
)

func (v RunsView) String() string {
	switch v {
	case RunsList:
		return "Runs"
	case RunsDetails:
		return "Details"
	default:
		return "Unknown"
	}
}

// JobRunsPanel lists the runs of one job.
type JobRunsPanel struct {
	// JobID is the panel context; empty until a job was opened.
	JobID   string
	Job     airflow.Job
	all     []airflow.JobRun
	pending []airflow.JobRun
	List    Container[airflow.JobRun]
	Filter  Filter
	View    RunsView
	Popup   Popup
	Loading bool

	Code        string
	CodeLoading bool
	CodeScroll  int

	// Selected holds runs picked with M for a multi-row mark.
	Selected map[string]bool

	pendingSeq int
}

// Open switches the panel to job, dropping rows of any previous job.
func (p *JobRunsPanel) Open(job airflow.Job) {
	*p = JobRunsPanel{JobID: job.ID, Job: job, Loading: true, pendingSeq: p.pendingSeq}
}

// SetRuns replaces the fetched runs. Placeholders stay on top.
func (p *JobRunsPanel) SetRuns(runs []airflow.JobRun) {
	p.all = runs
	p.Loading = false
	p.refilter()
}

// Find returns the run with id among fetched runs and placeholders.
func (p *JobRunsPanel) Find(runID string) (airflow.JobRun, bool) {
	for _, r := range p.pending {
		if r.RunID == runID {
			return r, true
		}
	}
	for _, r := range p.all {
		if r.RunID == runID {
			return r, true
		}
	}
	return airflow.JobRun{}, false
}

// SetRunState overwrites the state of a fetched run.
func (p *JobRunsPanel) SetRunState(runID string, state airflow.RunState) bool {
	for i := range p.all {
		if p.all[i].RunID == runID {
			p.all[i].State = state
			p.refilter()
			return true
		}
	}
	return false
}

// RevertRunState restores prior if the run still shows the optimistic
// state.
func (p *JobRunsPanel) RevertRunState(runID string, optimistic, prior airflow.RunState) bool {
	run, ok := p.Find(runID)
	if !ok || run.State != optimistic {
		return false
	}
	return p.SetRunState(runID, prior)
}

// ResolvePlaceholder replaces the placeholder with the run the server
// created. The new run keeps the selection if the placeholder had it.
func (p *JobRunsPanel) ResolvePlaceholder(placeholderID string, run airflow.JobRun) {
	wasSelected := false
	if sel, ok := p.List.Selected(); ok && sel.RunID == placeholderID {
		wasSelected = true
	}
	p.removePending(placeholderID)

	replaced := false
	for i := range p.all {
		if p.all[i].RunID == run.RunID {
			p.all[i] = run
			replaced = true
			break
		}
	}
	if !replaced {
		p.all = append([]airflow.JobRun{run}, p.all...)
	}
	p.refilter()
	if wasSelected {
		p.List.Select(run.RunID)
	}
}

// RemovePlaceholder drops a placeholder whose trigger failed. The
// selection moves to the row that took its place.
func (p *JobRunsPanel) RemovePlaceholder(placeholderID string) bool {
	if !p.removePending(placeholderID) {
		return false
	}
	p.List.Remove(placeholderID)
	p.refilter()
	return true
}

func (p *JobRunsPanel) removePending(id string) bool {
	for i, r := range p.pending {
		if r.RunID == id {
			p.pending = append(p.pending[:i:i], p.pending[i+1:]...)
			return true
		}
	}
	return false
}

// SetCode stores the fetched DAG source.
func (p *JobRunsPanel) SetCode(code string) {
	p.Code = code
	p.CodeLoading = false
}

func (p *JobRunsPanel) refilter() {
	rows := make([]airflow.JobRun, 0, len(p.pending)+len(p.all))
	rows = append(rows, p.pending...)
	rows = append(rows, p.all...)
	p.List.SetItems(apply(p.Filter, rows, nil, func(r airflow.JobRun) []string {
		return []string{r.RunID, string(r.State), r.RunType}
	}))
}

// CycleTab toggles between the run list and the job details.
func (p *JobRunsPanel) CycleTab() {
	p.View = (p.View + 1) % runsViewCount
}

// Update handles ev for the JobRuns panel.
func (p *JobRunsPanel) Update(ev Event) (*Event, []Command) {
	if ev.IsTick() {
		return fallback(ev)
	}
	if p.Popup.Open() {
		return nil, p.updatePopup(ev)
	}
	if consumed, changed := p.Filter.handle(ev); consumed {
		if changed {
			p.refilter()
		}
		return nil, nil
	}
	if navigate(&p.List, ev) || p.Filter.start(ev) {
		return nil, nil
	}

	switch {
	case key.Matches(ev, Keys.Help):
		p.Popup = Popup{Kind: PopupHelp}
	case key.Matches(ev, Keys.Refresh):
		if p.JobID == "" {
			return nil, nil
		}
		p.Loading = true
		return nil, []Command{FetchJobRuns{JobID: p.JobID}}
	case key.Matches(ev, Keys.Trigger):
		if p.JobID != "" {
			p.Popup = Popup{Kind: PopupConfirmTrigger, Target: p.JobID}
		}
	case key.Matches(ev, Keys.Select):
		if run, ok := p.selectedRun(); ok {
			p.toggleSelected(run.RunID)
		}
	case key.Matches(ev, Keys.Mark):
		run, ok := p.selectedRun()
		if !ok {
			return nil, nil
		}
		if len(p.Selected) == 0 {
			p.Popup = Popup{Kind: PopupMarkRun, Target: run.RunID}
			return nil, nil
		}
		p.Selected[run.RunID] = true
		p.Popup = Popup{Kind: PopupMarkRun, Target: fmt.Sprintf("%d runs", len(p.Selected)), Targets: p.selectedIDs()}
	case key.Matches(ev, Keys.Open):
		item := airflow.WebTarget{JobID: p.JobID}
		if run, ok := p.selectedRun(); ok {
			item.RunID = run.RunID
		}
		if p.JobID != "" {
			return nil, []Command{OpenInBrowser{Item: item}}
		}
	case key.Matches(ev, Keys.Clear):
		if run, ok := p.selectedRun(); ok {
			p.Popup = Popup{Kind: PopupConfirmClear, Target: run.RunID}
		}
	case key.Matches(ev, Keys.Code):
		if p.JobID == "" {
			return nil, nil
		}
		p.Popup = Popup{Kind: PopupCode}
		p.CodeScroll = 0
		if p.Code != "" {
			return nil, nil
		}
		p.CodeLoading = true
		return nil, []Command{FetchJobCode{Job: p.Job}}
	case key.Matches(ev, Keys.Enter):
		run, ok := p.selectedRun()
		if !ok {
			return nil, nil
		}
		return &ev, []Command{FetchTaskInstances{JobID: p.JobID, RunID: run.RunID}}
	default:
		return fallback(ev)
	}
	return nil, nil
}

// selectedRun returns the selected run unless it is a placeholder.
func (p *JobRunsPanel) selectedRun() (airflow.JobRun, bool) {
	run, ok := p.List.Selected()
	if !ok || IsPendingRun(run.RunID) {
		return airflow.JobRun{}, false
	}
	return run, true
}

func (p *JobRunsPanel) updatePopup(ev Event) []Command {
	switch p.Popup.Kind {
	case PopupHelp:
		p.Popup.handleHelp(ev)
	case PopupConfirmTrigger:
		if p.Popup.confirm(ev) {
			return p.trigger()
		}
	case PopupMarkRun:
		state, ok := p.Popup.choose(ev)
		if !ok {
			if !p.Popup.Open() {
				p.Selected = nil
			}
			return nil
		}
		targets := p.Popup.Targets
		if len(targets) == 0 {
			targets = []string{p.Popup.Target}
		}
		p.Popup.close()
		p.Selected = nil
		var cmds []Command
		for _, id := range targets {
			cmds = append(cmds, p.mark(id, state)...)
		}
		return cmds
	case PopupConfirmClear:
		target := p.Popup.Target
		if p.Popup.confirm(ev) {
			return []Command{ClearJobRun{JobID: p.JobID, RunID: target}}
		}
	case PopupCode:
		switch {
		case key.Matches(ev, Keys.Down):
			p.CodeScroll++
		case key.Matches(ev, Keys.Up):
			p.CodeScroll = max(p.CodeScroll-1, 0)
		case key.Matches(ev, Keys.HalfPageDown):
			p.CodeScroll += HalfPage
		case key.Matches(ev, Keys.HalfPageUp):
			p.CodeScroll = max(p.CodeScroll-HalfPage, 0)
		case key.Matches(ev, Keys.Top):
			p.CodeScroll = 0
		case key.Matches(ev, Keys.Cancel), key.Matches(ev, Keys.Code):
			p.Popup.close()
		}
	default:
		p.Popup.close()
	}
	return nil
}

func (p *JobRunsPanel) trigger() []Command {
	if p.JobID == "" {
		return nil
	}
	p.pendingSeq++
	id := fmt.Sprintf("%s%d", PendingRunPrefix, p.pendingSeq)
	p.pending = append([]airflow.JobRun{{
		JobID:   p.JobID,
		RunID:   id,
		State:   airflow.StateQueued,
		RunType: "manual",
	}}, p.pending...)
	p.refilter()
	p.List.Select(id)
	return []Command{TriggerJobRun{JobID: p.JobID, PlaceholderID: id}}
}

// IsSelected reports whether runID was picked with M.
func (p *JobRunsPanel) IsSelected(runID string) bool {
	return p.Selected[runID]
}

func (p *JobRunsPanel) toggleSelected(runID string) {
	if p.Selected[runID] {
		delete(p.Selected, runID)
		return
	}
	if p.Selected == nil {
		p.Selected = map[string]bool{}
	}
	p.Selected[runID] = true
}

// selectedIDs returns the picked runs in list order.
func (p *JobRunsPanel) selectedIDs() []string {
	var ids []string
	for _, r := range p.pending {
		if p.Selected[r.RunID] {
			ids = append(ids, r.RunID)
		}
	}
	for _, r := range p.all {
		if p.Selected[r.RunID] {
			ids = append(ids, r.RunID)
		}
	}
	return ids
}

func (p *JobRunsPanel) mark(runID string, state airflow.RunState) []Command {
	run, ok := p.Find(runID)
	if !ok || run.State == state {
		return nil
	}
	p.SetRunState(runID, state)
	return []Command{SetJobRunState{JobID: p.JobID, RunID: runID, State: state, Prior: run.State}}
}

func (p *JobRunsPanel) clone() JobRunsPanel {
	out := *p
	out.all = append([]airflow.JobRun(nil), p.all...)
	out.pending = append([]airflow.JobRun(nil), p.pending...)
	out.List = p.List.Clone()
	out.Selected = maps.Clone(p.Selected)
	return out
}

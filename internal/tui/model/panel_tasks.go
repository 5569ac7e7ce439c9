package model

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
)

// TasksTab selects which task instances are listed.
type TasksTab int

const (
	TasksAll TasksTab = iota
	TasksFailed
	TasksRunning
	tasksTabCount
)

func (t TasksTab) String() string {
	switch t {
	case TasksAll:
		return "All"
	case TasksFailed:
		return "Failed"
	case TasksRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// TaskInstancesPanel lists the task instances of one run.
type TaskInstancesPanel struct {
	JobID   string
	RunID   string
	all     []airflow.TaskInstance
	List    Container[airflow.TaskInstance]
	Filter  Filter
	Tab     TasksTab
	Popup   Popup
	Loading bool

	// rank orders tasks along the job's graph; Prefix is the tree drawn in
	// front of each task id. Both are keyed by task id.
	rank   map[string]int
	Prefix map[string]string

	// Selected holds row keys picked with M for a multi-row mark.
	Selected map[string]bool
}

// Open switches the panel to a run.
func (p *TaskInstancesPanel) Open(jobID, runID string) {
	*p = TaskInstancesPanel{JobID: jobID, RunID: runID, Loading: true}
}

// SetTaskInstances replaces the fetched task instances.
func (p *TaskInstancesPanel) SetTaskInstances(tis []airflow.TaskInstance) {
	p.all = tis
	p.Loading = false
	p.refilter()
}

// SetGraph orders the rows along the task graph of the job.
func (p *TaskInstancesPanel) SetGraph(tasks []airflow.Task) {
	p.rank, p.Prefix = airflow.GraphOrder(tasks)
	p.refilter()
}

// Find returns the task instance with row key k.
func (p *TaskInstancesPanel) Find(k string) (airflow.TaskInstance, bool) {
	for _, ti := range p.all {
		if ti.Key() == k {
			return ti, true
		}
	}
	return airflow.TaskInstance{}, false
}

// SetState overwrites the state of the task instance with row key k.
func (p *TaskInstancesPanel) SetState(k string, state airflow.RunState) bool {
	for i := range p.all {
		if p.all[i].Key() == k {
			p.all[i].State = state
			p.refilter()
			return true
		}
	}
	return false
}

// RevertState restores prior if the instance still shows the optimistic
// state.
func (p *TaskInstancesPanel) RevertState(k string, optimistic, prior airflow.RunState) bool {
	ti, ok := p.Find(k)
	if !ok || ti.State != optimistic {
		return false
	}
	return p.SetState(k, prior)
}

func (p *TaskInstancesPanel) refilter() {
	keep := func(ti airflow.TaskInstance) bool {
		switch p.Tab {
		case TasksFailed:
			return ti.State == airflow.StateFailed || ti.State == airflow.StateUpstreamFailed || ti.State == airflow.StateUpForRetry
		case TasksRunning:
			return ti.State == airflow.StateRunning || ti.State == airflow.StateQueued || ti.State == airflow.StateScheduled || ti.State == airflow.StateDeferred
		default:
			return true
		}
	}
	rows := apply(p.Filter, p.all, keep, func(ti airflow.TaskInstance) []string {
		return []string{ti.TaskID, string(ti.State), ti.Operator}
	})
	if len(p.rank) > 0 {
		slices.SortStableFunc(rows, func(a, b airflow.TaskInstance) int {
			return cmp.Compare(p.rankOf(a.TaskID), p.rankOf(b.TaskID))
		})
	}
	p.List.SetItems(rows)
}

// rankOf puts tasks missing from the graph last.
func (p *TaskInstancesPanel) rankOf(taskID string) int {
	if r, ok := p.rank[taskID]; ok {
		return r
	}
	return len(p.rank)
}

// CycleTab rotates All, Failed and Running.
func (p *TaskInstancesPanel) CycleTab() {
	p.Tab = (p.Tab + 1) % tasksTabCount
	p.refilter()
}

// Update handles ev for the TaskInstances panel.
func (p *TaskInstancesPanel) Update(ev Event) (*Event, []Command) {
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
		if p.RunID == "" {
			return nil, nil
		}
		p.Loading = true
		return nil, []Command{FetchTaskInstances{JobID: p.JobID, RunID: p.RunID}}
	case key.Matches(ev, Keys.Select):
		if ti, ok := p.List.Selected(); ok {
			p.toggleSelected(ti.Key())
		}
	case key.Matches(ev, Keys.Mark):
		ti, ok := p.List.Selected()
		if !ok {
			return nil, nil
		}
		if len(p.Selected) == 0 {
			p.Popup = Popup{Kind: PopupMarkTask, Target: ti.Key()}
			return nil, nil
		}
		p.Selected[ti.Key()] = true
		p.Popup = Popup{Kind: PopupMarkTask, Target: fmt.Sprintf("%d tasks", len(p.Selected)), Targets: p.selectedKeys()}
	case key.Matches(ev, Keys.Clear):
		if ti, ok := p.List.Selected(); ok {
			p.Popup = Popup{Kind: PopupConfirmClear, Target: ti.Key()}
		}
	case key.Matches(ev, Keys.Open):
		if p.RunID == "" {
			return nil, nil
		}
		item := airflow.WebTarget{JobID: p.JobID, RunID: p.RunID}
		if ti, ok := p.List.Selected(); ok {
			item.TaskID = ti.TaskID
		}
		return nil, []Command{OpenInBrowser{Item: item}}
	case key.Matches(ev, Keys.Enter):
		ti, ok := p.List.Selected()
		if !ok {
			return nil, nil
		}
		return &ev, fetchAllLogs(p.JobID, p.RunID, ti)
	default:
		return fallback(ev)
	}
	return nil, nil
}

// fetchAllLogs requests every attempt of ti, newest first so the attempt
// shown by default arrives first.
func fetchAllLogs(jobID, runID string, ti airflow.TaskInstance) []Command {
	attempts := ti.Attempts()
	cmds := make([]Command, 0, attempts)
	for a := attempts; a >= 1; a-- {
		cmds = append(cmds, FetchLogs{
			JobID:     jobID,
			RunID:     runID,
			TaskID:    ti.TaskID,
			Attempt:   a,
			Attempts:  attempts,
			Cacheable: a < attempts || ti.State.Terminal(),
		})
	}
	return cmds
}

func (p *TaskInstancesPanel) updatePopup(ev Event) []Command {
	switch p.Popup.Kind {
	case PopupHelp:
		p.Popup.handleHelp(ev)
	case PopupMarkTask:
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
		for _, k := range targets {
			cmds = append(cmds, p.mark(k, state)...)
		}
		return cmds
	case PopupConfirmClear:
		target := p.Popup.Target
		if p.Popup.confirm(ev) {
			if ti, ok := p.Find(target); ok {
				return []Command{ClearTaskInstance{JobID: p.JobID, RunID: p.RunID, TaskID: ti.TaskID}}
			}
		}
	default:
		p.Popup.close()
	}
	return nil
}

func (p *TaskInstancesPanel) mark(k string, state airflow.RunState) []Command {
	ti, ok := p.Find(k)
	if !ok || ti.State == state {
		return nil
	}
	p.SetState(k, state)
	return []Command{SetTaskInstanceState{
		JobID:  p.JobID,
		RunID:  p.RunID,
		TaskID: ti.TaskID,
		Key:    k,
		State:  state,
		Prior:  ti.State,
	}}
}

// IsSelected reports whether the row with key k was picked with M.
func (p *TaskInstancesPanel) IsSelected(k string) bool {
	return p.Selected[k]
}

func (p *TaskInstancesPanel) toggleSelected(k string) {
	if p.Selected[k] {
		delete(p.Selected, k)
		return
	}
	if p.Selected == nil {
		p.Selected = map[string]bool{}
	}
	p.Selected[k] = true
}

// selectedKeys returns the picked rows in fetch order.
func (p *TaskInstancesPanel) selectedKeys() []string {
	var keys []string
	for _, ti := range p.all {
		if p.Selected[ti.Key()] {
			keys = append(keys, ti.Key())
		}
	}
	return keys
}

func (p *TaskInstancesPanel) clone() TaskInstancesPanel {
	out := *p
	out.all = append([]airflow.TaskInstance(nil), p.all...)
	out.List = p.List.Clone()
	out.rank = maps.Clone(p.rank)
	out.Prefix = maps.Clone(p.Prefix)
	out.Selected = maps.Clone(p.Selected)
	return out
}

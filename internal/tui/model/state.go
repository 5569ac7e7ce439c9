package model

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/key"
)

// Data is the whole application state. The live copy is owned by State;
// everything else works on snapshots.
type Data struct {
	// Generation increments on every server switch. Commands carry the
	// generation they were issued in so late results can be recognised.
	Generation   uint64
	ActiveServer string
	Active       PanelKind

	Config        ConfigPanel
	Jobs          JobsPanel
	JobRuns       JobRunsPanel
	TaskInstances TaskInstancesPanel
	Logs          LogsPanel

	Banner *AppError
	Ticks  uint64

	// visited keeps the Jobs panel of servers switched away from, so that
	// returning to one shows its last listing while it reloads.
	visited map[string]JobsPanel
}

// NewData returns the initial state: servers listed, and the Jobs panel
// active when a server is already selected.
func NewData(servers []ServerEntry, activeServer string) Data {
	var d Data
	d.Config.SetServers(servers)
	if activeServer != "" {
		d.Config.Servers.Select(activeServer)
		d.Active = PanelJobs
	}
	return d
}

// Clone returns a deep copy of d.
func (d *Data) Clone() Data {
	out := *d
	out.Config = d.Config.clone()
	out.Jobs = d.Jobs.clone()
	out.JobRuns = d.JobRuns.clone()
	out.TaskInstances = d.TaskInstances.clone()
	out.Logs = d.Logs.clone()
	if d.visited != nil {
		out.visited = make(map[string]JobsPanel, len(d.visited))
		for name, p := range d.visited {
			out.visited[name] = p.clone()
		}
	}
	return out
}

// Dispatch routes ev to the active panel.
func (d *Data) Dispatch(ev Event) (*Event, []Command) {
	switch d.Active {
	case PanelConfig:
		return d.Config.Update(ev)
	case PanelJobs:
		return d.Jobs.Update(ev)
	case PanelJobRuns:
		return d.JobRuns.Update(ev)
	case PanelTaskInstances:
		return d.TaskInstances.Update(ev)
	case PanelLogs:
		return d.Logs.Update(ev)
	default:
		panic(fmt.Sprintf("unknown panel %d", d.Active))
	}
}

// Capturing reports whether the active panel is editing its filter or
// showing a popup, so that esc belongs to it.
func (d *Data) Capturing() bool {
	switch d.Active {
	case PanelConfig:
		return d.Config.Filter.Editing || d.Config.Popup.Open()
	case PanelJobs:
		return d.Jobs.Filter.Editing || d.Jobs.Popup.Open()
	case PanelJobRuns:
		return d.JobRuns.Filter.Editing || d.JobRuns.Popup.Open()
	case PanelTaskInstances:
		return d.TaskInstances.Filter.Editing || d.TaskInstances.Popup.Open()
	case PanelLogs:
		return d.Logs.Popup.Open()
	default:
		return false
	}
}

// HasContext reports whether panel p has what it needs to be shown.
func (d *Data) HasContext(p PanelKind) bool {
	switch p {
	case PanelConfig:
		return true
	case PanelJobs:
		return d.ActiveServer != ""
	case PanelJobRuns:
		return d.JobRuns.JobID != ""
	case PanelTaskInstances:
		return d.TaskInstances.RunID != ""
	case PanelLogs:
		return d.Logs.TaskID != ""
	default:
		return false
	}
}

// NextPanel moves to the following panel if it has context.
func (d *Data) NextPanel() bool {
	next := d.Active.Next()
	if next == d.Active || !d.HasContext(next) {
		return false
	}
	d.Active = next
	return true
}

// PrevPanel moves to the preceding panel. It stops at Config.
func (d *Data) PrevPanel() bool {
	prev := d.Active.Prev()
	if prev == d.Active {
		return false
	}
	d.Active = prev
	return true
}

// CycleTab rotates the sub-view of the active panel.
func (d *Data) CycleTab() {
	switch d.Active {
	case PanelConfig:
	case PanelJobs:
		d.Jobs.CycleTab()
	case PanelJobRuns:
		d.JobRuns.CycleTab()
	case PanelTaskInstances:
		d.TaskInstances.CycleTab()
	case PanelLogs:
		d.Logs.CycleTab()
	}
}

// ApplyGlobal handles a key a panel did not consume. It reports true for
// quit.
func (d *Data) ApplyGlobal(ev Event) (quit bool) {
	switch {
	case key.Matches(ev, Keys.Quit):
		return true
	case key.Matches(ev, Keys.Next):
		d.NextPanel()
	case key.Matches(ev, Keys.Back):
		d.PrevPanel()
	case key.Matches(ev, Keys.Tab):
		d.CycleTab()
	}
	return false
}

// Prepare sets up the context a command's result will be applied to. It
// runs in the same critical section as the panel update that emitted cmd.
func (d *Data) Prepare(cmd Command) {
	switch c := cmd.(type) {
	case SwitchServer:
		d.switchServer(c.Server)
	case FetchJobs:
		d.Jobs.Loading = true
	case FetchJobRuns:
		if d.JobRuns.JobID == c.JobID {
			d.JobRuns.Loading = true
			return
		}
		job, ok := d.Jobs.Find(c.JobID)
		if !ok {
			job.ID = c.JobID
		}
		d.JobRuns.Open(job)
		d.TaskInstances = TaskInstancesPanel{}
		d.Logs = LogsPanel{}
	case FetchTaskInstances:
		if d.TaskInstances.JobID == c.JobID && d.TaskInstances.RunID == c.RunID {
			d.TaskInstances.Loading = true
			return
		}
		d.TaskInstances.Open(c.JobID, c.RunID)
		d.Logs = LogsPanel{}
	case FetchLogs:
		if !d.Logs.Matches(c.JobID, c.RunID, c.TaskID) {
			d.Logs.Open(c.JobID, c.RunID, c.TaskID, c.Attempts)
		}
	}
}

func (d *Data) switchServer(name string) {
	if d.ActiveServer != "" {
		if d.visited == nil {
			d.visited = map[string]JobsPanel{}
		}
		prev := d.Jobs.clone()
		prev.Popup = Popup{}
		prev.Filter = Filter{}
		prev.Section = SectionDAGs
		prev.Loading, prev.SectionLoading = false, false
		prev.VariablesSeen, prev.ConnectionsSeen = false, false
		prev.refilter()
		d.visited[d.ActiveServer] = prev
	}
	d.Generation++
	d.ActiveServer = name
	d.Config.markActive(name)
	d.Jobs = JobsPanel{}
	if cached, ok := d.visited[name]; ok {
		d.Jobs = cached
	}
	d.Jobs.Loading = true
	d.JobRuns = JobRunsPanel{pendingSeq: d.JobRuns.pendingSeq}
	d.TaskInstances = TaskInstancesPanel{}
	d.Logs = LogsPanel{}
}

// State guards Data with a single mutex. The lock is held for one snapshot
// copy or one mutation, never across I/O.
type State struct {
	mu       sync.Mutex
	data     Data
	poisoned error
}

// NewState wraps initial.
func NewState(initial Data) *State {
	return &State{data: initial}
}

// Snapshot returns a deep copy of the current data.
func (s *State) Snapshot() (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return Data{}, s.poisoned
	}
	return s.data.Clone(), nil
}

// Mutate runs fn on the live data under the lock. If fn panics the state
// is marked poisoned and every later call fails with ErrStatePoisoned.
func (s *State) Mutate(fn func(d *Data)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return s.poisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = fmt.Errorf("%w: mutation panicked: %v", ErrStatePoisoned, r)
			err = s.poisoned
		}
	}()
	fn(&s.data)
	return nil
}

package model

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
)

// JobsTab selects which jobs are listed.
type JobsTab int

const (
	JobsAll JobsTab = iota
	JobsActive
	JobsPaused
	jobsTabCount
)

func (t JobsTab) String() string {
	switch t {
	case JobsAll:
		return "All"
	case JobsActive:
		return "Active"
	case JobsPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// JobsSection is the resource listed by the Jobs panel.
type JobsSection int

const (
	SectionDAGs JobsSection = iota
	SectionVariables
	SectionConnections
	sectionCount
)

// Sections lists every section in display order.
var Sections = []JobsSection{SectionDAGs, SectionVariables, SectionConnections}

func (s JobsSection) String() string {
	switch s {
	case SectionDAGs:
		return "DAGs"
	case SectionVariables:
		return "Variables"
	case SectionConnections:
		return "Connections"
	default:
		return "Unknown"
	}
}

// JobsPanel lists the jobs of the active server, and on its other sections
// the server's variables and connections.
type JobsPanel struct {
	all     []airflow.Job
	List    Container[airflow.Job]
	Filter  Filter
	Tab     JobsTab
	Popup   Popup
	Loading bool

	Section JobsSection

	variables     []airflow.Variable
	Variables     Container[airflow.Variable]
	VariablesSeen bool

	connections     []airflow.Connection
	Connections     Container[airflow.Connection]
	ConnectionsSeen bool

	// ImportErrors is nil until fetched.
	ImportErrors  []airflow.ImportError
	ImportsScroll int

	// SectionLoading is set while the variables or connections load.
	SectionLoading bool
}

// All returns every job regardless of tab and filter.
func (p *JobsPanel) All() []airflow.Job { return p.all }

// SetJobs replaces the job list with a fetched one.
func (p *JobsPanel) SetJobs(jobs []airflow.Job) {
	p.all = jobs
	p.Loading = false
	p.refilter()
}

// SetVariables replaces the fetched variables.
func (p *JobsPanel) SetVariables(vars []airflow.Variable) {
	p.variables = vars
	p.VariablesSeen = true
	p.SectionLoading = false
	p.refilter()
}

// SetConnections replaces the fetched connections.
func (p *JobsPanel) SetConnections(conns []airflow.Connection) {
	p.connections = conns
	p.ConnectionsSeen = true
	p.SectionLoading = false
	p.refilter()
}

// SetImportErrors stores the fetched import errors.
func (p *JobsPanel) SetImportErrors(errs []airflow.ImportError) {
	if errs == nil {
		errs = []airflow.ImportError{}
	}
	p.ImportErrors = errs
}

// Find returns the job with id, ignoring tab and filter.
func (p *JobsPanel) Find(id string) (airflow.Job, bool) {
	for _, j := range p.all {
		if j.ID == id {
			return j, true
		}
	}
	return airflow.Job{}, false
}

// FindVariable returns the variable named name.
func (p *JobsPanel) FindVariable(name string) (airflow.Variable, bool) {
	for _, v := range p.variables {
		if v.Name == name {
			return v, true
		}
	}
	return airflow.Variable{}, false
}

// FindConnection returns the connection with id.
func (p *JobsPanel) FindConnection(id string) (airflow.Connection, bool) {
	for _, c := range p.connections {
		if c.ID == id {
			return c, true
		}
	}
	return airflow.Connection{}, false
}

// SetPaused overwrites the paused flag of a job. It reports false when the
// job is not listed.
func (p *JobsPanel) SetPaused(id string, paused bool) bool {
	for i := range p.all {
		if p.all[i].ID == id {
			p.all[i].Paused = paused
			p.refilter()
			return true
		}
	}
	return false
}

// RevertPaused restores prior if the job still shows the optimistic value.
func (p *JobsPanel) RevertPaused(id string, optimistic, prior bool) bool {
	job, ok := p.Find(id)
	if !ok || job.Paused != optimistic {
		return false
	}
	return p.SetPaused(id, prior)
}

func (p *JobsPanel) refilter() {
	keep := func(j airflow.Job) bool {
		switch p.Tab {
		case JobsActive:
			return !j.Paused
		case JobsPaused:
			return j.Paused
		default:
			return true
		}
	}
	p.List.SetItems(apply(p.Filter, p.all, keep, func(j airflow.Job) []string {
		return append([]string{j.ID}, j.Tags...)
	}))
	p.Variables.SetItems(apply(p.Filter, p.variables, nil, func(v airflow.Variable) []string {
		return []string{v.Name, v.Description}
	}))
	p.Connections.SetItems(apply(p.Filter, p.connections, nil, func(c airflow.Connection) []string {
		return []string{c.ID, c.Type, c.Host}
	}))
}

// CycleTab rotates All, Active and Paused.
func (p *JobsPanel) CycleTab() {
	if p.Section != SectionDAGs {
		return
	}
	p.Tab = (p.Tab + 1) % jobsTabCount
	p.refilter()
}

// Update handles ev for the Jobs panel.
func (p *JobsPanel) Update(ev Event) (*Event, []Command) {
	if ev.IsTick() {
		return fallback(ev)
	}
	if p.Popup.Open() {
		p.updatePopup(ev)
		return nil, nil
	}
	if consumed, changed := p.Filter.handle(ev); consumed {
		if changed {
			p.refilter()
		}
		return nil, nil
	}
	if p.navigate(ev) || p.Filter.start(ev) {
		return nil, nil
	}

	switch {
	case key.Matches(ev, Keys.Help):
		p.Popup = Popup{Kind: PopupHelp}
		return nil, nil
	case key.Matches(ev, Keys.NextSection):
		return nil, p.switchSection((p.Section + 1) % sectionCount)
	case key.Matches(ev, Keys.PrevSection):
		return nil, p.switchSection((p.Section + sectionCount - 1) % sectionCount)
	case key.Matches(ev, Keys.ImportErrors):
		p.Popup = Popup{Kind: PopupImportErrors}
		p.ImportsScroll = 0
		return nil, []Command{FetchImportErrors{}}
	case key.Matches(ev, Keys.Refresh):
		return nil, p.refresh()
	}

	if p.Section != SectionDAGs {
		if key.Matches(ev, Keys.Enter) {
			p.openDetail()
			return nil, nil
		}
		return fallback(ev)
	}

	switch {
	case key.Matches(ev, Keys.Pause):
		job, ok := p.List.Selected()
		if !ok {
			return nil, nil
		}
		p.SetPaused(job.ID, !job.Paused)
		return nil, []Command{ToggleJobPause{JobID: job.ID, Paused: !job.Paused, Prior: job.Paused}}
	case key.Matches(ev, Keys.Open):
		job, ok := p.List.Selected()
		if !ok {
			return nil, nil
		}
		return nil, []Command{OpenInBrowser{Item: airflow.WebTarget{JobID: job.ID}}}
	case key.Matches(ev, Keys.Enter):
		job, ok := p.List.Selected()
		if !ok {
			return nil, nil
		}
		return &ev, []Command{FetchJobRuns{JobID: job.ID}}
	}
	return fallback(ev)
}

func (p *JobsPanel) navigate(ev Event) bool {
	switch p.Section {
	case SectionVariables:
		return navigate(&p.Variables, ev)
	case SectionConnections:
		return navigate(&p.Connections, ev)
	default:
		return navigate(&p.List, ev)
	}
}

// switchSection shows s, loading it the first time.
func (p *JobsPanel) switchSection(s JobsSection) []Command {
	p.Section = s
	switch {
	case s == SectionVariables && !p.VariablesSeen,
		s == SectionConnections && !p.ConnectionsSeen:
		return p.refresh()
	}
	return nil
}

func (p *JobsPanel) refresh() []Command {
	switch p.Section {
	case SectionVariables:
		p.SectionLoading = true
		return []Command{FetchVariables{}}
	case SectionConnections:
		p.SectionLoading = true
		return []Command{FetchConnections{}}
	default:
		p.Loading = true
		return []Command{FetchJobs{}, FetchImportErrors{}}
	}
}

func (p *JobsPanel) openDetail() {
	switch p.Section {
	case SectionVariables:
		if v, ok := p.Variables.Selected(); ok {
			p.Popup = Popup{Kind: PopupVariable, Target: v.Name}
		}
	case SectionConnections:
		if c, ok := p.Connections.Selected(); ok {
			p.Popup = Popup{Kind: PopupConnection, Target: c.ID}
		}
	}
}

func (p *JobsPanel) updatePopup(ev Event) {
	switch p.Popup.Kind {
	case PopupImportErrors:
		switch {
		case key.Matches(ev, Keys.Down):
			p.ImportsScroll++
		case key.Matches(ev, Keys.Up):
			p.ImportsScroll = max(p.ImportsScroll-1, 0)
		case key.Matches(ev, Keys.HalfPageDown):
			p.ImportsScroll += HalfPage
		case key.Matches(ev, Keys.HalfPageUp):
			p.ImportsScroll = max(p.ImportsScroll-HalfPage, 0)
		case key.Matches(ev, Keys.Cancel), key.Matches(ev, Keys.ImportErrors):
			p.Popup.close()
		}
	default:
		p.Popup.close()
	}
}

func (p *JobsPanel) clone() JobsPanel {
	out := *p
	out.all = append([]airflow.Job(nil), p.all...)
	out.List = p.List.Clone()
	out.variables = append([]airflow.Variable(nil), p.variables...)
	out.Variables = p.Variables.Clone()
	out.connections = append([]airflow.Connection(nil), p.connections...)
	out.Connections = p.Connections.Clone()
	if p.ImportErrors != nil {
		out.ImportErrors = append([]airflow.ImportError{}, p.ImportErrors...)
	}
	return out
}

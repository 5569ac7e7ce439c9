package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/internal/tui/utils"
)

type column struct {
	title string
	width int
	// flex columns share what the fixed ones leave.
	flex bool
}

type row struct {
	cells []string
	// stateCol, when >= 0, is colored by state.
	stateCol int
	state    airflow.RunState
	pending  bool
}

func renderTable(cols []column, rows []row, selected, width, height int, empty string) string {
	if len(rows) == 0 {
		return design.DimStyle.Render(empty)
	}
	widths := columnWidths(cols, width)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = utils.PadRight(c.title, widths[i])
	}
	lines := []string{design.TableHeaderStyle.Render(strings.Join(header, " "))}

	visible := max(height-1, 1)
	offset := 0
	if selected >= visible {
		offset = selected - visible + 1
	}
	end := min(offset+visible, len(rows))
	for i := offset; i < end; i++ {
		lines = append(lines, renderRow(rows[i], widths, i == selected))
	}
	return strings.Join(lines, "\n")
}

func renderRow(r row, widths []int, selected bool) string {
	cells := make([]string, len(r.cells))
	for i, c := range r.cells {
		cells[i] = utils.PadRight(c, widths[i])
	}
	switch {
	case selected:
		return design.SelectedRowStyle.Render(strings.Join(cells, " "))
	case r.pending:
		return design.PendingRowStyle.Render(strings.Join(cells, " "))
	}
	if r.stateCol >= 0 && r.stateCol < len(cells) {
		cells[r.stateCol] = design.StateStyle(r.state).Render(cells[r.stateCol])
	}
	return design.RowStyle.Render(strings.Join(cells, " "))
}

func columnWidths(cols []column, width int) []int {
	widths := make([]int, len(cols))
	fixed, flex := len(cols)-1, 0
	for i, c := range cols {
		if c.flex {
			flex++
			continue
		}
		widths[i] = c.width
		fixed += c.width
	}
	if flex == 0 {
		return widths
	}
	share := max((width-fixed)/flex, 8)
	for i, c := range cols {
		if c.flex {
			widths[i] = share
		}
	}
	return widths
}

func loadingOr(loading bool, msg string) string {
	if loading {
		return "Loading..."
	}
	return msg
}

func relTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return humanize.RelTime(*t, now(), "ago", "from now")
}

func duration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func configTable(p model.ConfigPanel, width, height int) string {
	cols := []column{
		{title: " ", width: 1},
		{title: "NAME", flex: true},
		{title: "ENDPOINT", flex: true},
		{title: "API", width: 4},
		{title: "SOURCE", width: 10},
	}
	items := p.Servers.Items()
	rows := make([]row, len(items))
	for i, s := range items {
		marker := " "
		if s.Active {
			marker = "●"
		}
		source := s.Managed
		if source == "" {
			source = "config"
		}
		version := s.Version
		if version == "" {
			version = "v1"
		}
		rows[i] = row{cells: []string{marker, s.Name, s.Endpoint, version, source}, stateCol: -1}
	}
	return renderTable(cols, rows, p.Servers.Index(), width, height,
		"No servers configured. Add one with `flowrs config add`.")
}

func jobsTable(p model.JobsPanel, width, height int) string {
	cols := []column{
		{title: " ", width: 1},
		{title: "DAG", flex: true},
		{title: "SCHEDULE", width: 16},
		{title: "NEXT RUN", width: 16},
		{title: "TAGS", flex: true},
	}
	items := p.List.Items()
	rows := make([]row, len(items))
	for i, j := range items {
		marker := "▶"
		if j.Paused {
			marker = "⏸"
		}
		if j.HasImportErrors {
			marker = "!"
		}
		rows[i] = row{
			cells:    []string{marker, j.ID, j.Schedule, relTime(j.NextRun), strings.Join(j.Tags, ",")},
			stateCol: -1,
		}
	}
	return renderTable(cols, rows, p.List.Index(), width, height, loadingOr(p.Loading, "No DAGs."))
}

func runsTable(p model.JobRunsPanel, width, height int) string {
	cols := []column{
		{title: " ", width: 1},
		{title: "RUN", flex: true},
		{title: "STATE", width: 16},
		{title: "TYPE", width: 10},
		{title: "LOGICAL DATE", width: 16},
		{title: "DURATION", width: 10},
	}
	items := p.List.Items()
	rows := make([]row, len(items))
	for i, r := range items {
		pending := model.IsPendingRun(r.RunID)
		id := r.RunID
		if pending {
			id = "(triggering…)"
		}
		marker := " "
		if p.IsSelected(r.RunID) {
			marker = "✓"
		}
		rows[i] = row{
			cells:    []string{marker, id, r.State.String(), r.RunType, relTime(r.LogicalDate), duration(r.Duration(now()))},
			stateCol: 2,
			state:    r.State,
			pending:  pending,
		}
	}
	return renderTable(cols, rows, p.List.Index(), width, height, loadingOr(p.Loading, "No runs."))
}

func tasksTable(p model.TaskInstancesPanel, width, height int) string {
	cols := []column{
		{title: " ", width: 1},
		{title: "TASK", flex: true},
		{title: "STATE", width: 17},
		{title: "TRY", width: 5},
		{title: "OPERATOR", width: 18},
		{title: "DURATION", width: 10},
	}
	items := p.List.Items()
	rows := make([]row, len(items))
	for i, ti := range items {
		try := fmt.Sprintf("%d", ti.TryNumber)
		if ti.MaxTries > 0 {
			try = fmt.Sprintf("%d/%d", ti.TryNumber, ti.MaxTries+1)
		}
		marker := " "
		if p.IsSelected(ti.Key()) {
			marker = "✓"
		}
		rows[i] = row{
			cells:    []string{marker, p.Prefix[ti.TaskID] + ti.Key(), ti.State.String(), try, ti.Operator, duration(ti.Duration(now()))},
			stateCol: 2,
			state:    ti.State,
		}
	}
	return renderTable(cols, rows, p.List.Index(), width, height, loadingOr(p.Loading, "No task instances."))
}

// clampLines returns at most height lines of s starting at scroll, with
// scroll clamped so the last page stays full.
func clampLines(s string, scroll, width, height int) string {
	lines := strings.Split(utils.ExpandTabs(s), "\n")
	maxScroll := max(len(lines)-height, 0)
	scroll = min(max(scroll, 0), maxScroll)
	end := min(scroll+height, len(lines))
	out := lines[scroll:end]
	for i, l := range out {
		if lipgloss.Width(l) > width {
			out[i] = lipgloss.NewStyle().MaxWidth(width).Render(l)
		}
	}
	return strings.Join(out, "\n")
}

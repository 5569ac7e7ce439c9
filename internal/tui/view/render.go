// Package view draws a state snapshot as a string for the terminal. It has
// no side effects: the same snapshot and size always give the same frame.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/terakael/flowrs/internal/tui/components"
	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/internal/tui/utils"
)

// now is the clock for relative times; replaced in tests.
var now = time.Now

const (
	defaultWidth  = 100
	defaultHeight = 30
)

// Render draws d into a width x height frame.
func Render(d model.Data, width, height int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	header := renderHeader(d, width)
	status := renderStatus(d, width)
	var banner string
	if d.Banner != nil {
		banner = renderBanner(d.Banner, width)
	}

	used := lipgloss.Height(header) + lipgloss.Height(status)
	if banner != "" {
		used += lipgloss.Height(banner)
	}
	panelHeight := max(height-used, design.MinPanelHeight)

	panel := renderPanel(d, width, panelHeight)
	if popup := renderPopup(d, width, panelHeight); popup != "" {
		panel = lipgloss.Place(width, panelHeight, lipgloss.Center, lipgloss.Center, popup)
	}

	parts := []string{header}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, panel, status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader shows where the user is: server, job, run and task.
func renderHeader(d model.Data, width int) string {
	crumbs := []string{"flowrs"}
	if d.ActiveServer != "" {
		crumbs = append(crumbs, d.ActiveServer)
	}
	if d.Active >= model.PanelJobRuns && d.JobRuns.JobID != "" {
		crumbs = append(crumbs, d.JobRuns.JobID)
	}
	if d.Active >= model.PanelTaskInstances && d.TaskInstances.RunID != "" {
		crumbs = append(crumbs, d.TaskInstances.RunID)
	}
	if d.Active >= model.PanelLogs && d.Logs.TaskID != "" {
		crumbs = append(crumbs, d.Logs.TaskID)
	}
	line := strings.Join(crumbs, design.BreadcrumbSeparator)
	return design.HeaderStyle.Width(width).MaxWidth(width).Render(line)
}

func renderBanner(err *model.AppError, width int) string {
	msg := fmt.Sprintf("✗ %s  (esc to dismiss)", err.Error())
	inner := max(width-design.BannerStyle.GetHorizontalFrameSize(), 1)
	return design.BannerStyle.Width(width).Render(utils.TruncateString(msg, inner))
}

func renderStatus(d model.Data, width int) string {
	h := help.New()
	h.ShortSeparator = " · "
	left := d.Active.String()
	if f := activeFilter(d); f.Editing || f.Text != "" {
		cursor := ""
		if f.Editing {
			cursor = "▏"
		}
		left = design.FilterStyle.Render("/" + f.Text + cursor)
	}
	if activeLoading(d) {
		left = spinnerFrames[d.Ticks%uint64(len(spinnerFrames))] + " " + left
	}
	return components.NewStatusBar(width).
		WithLeftText(left).
		WithRightText(h.ShortHelpView(model.Keys.ShortHelp())).
		Render()
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func activeLoading(d model.Data) bool {
	switch d.Active {
	case model.PanelJobs:
		return d.Jobs.Loading || d.Jobs.SectionLoading
	case model.PanelJobRuns:
		return d.JobRuns.Loading || d.JobRuns.CodeLoading
	case model.PanelTaskInstances:
		return d.TaskInstances.Loading
	default:
		return false
	}
}

func activeFilter(d model.Data) model.Filter {
	switch d.Active {
	case model.PanelConfig:
		return d.Config.Filter
	case model.PanelJobs:
		return d.Jobs.Filter
	case model.PanelJobRuns:
		return d.JobRuns.Filter
	case model.PanelTaskInstances:
		return d.TaskInstances.Filter
	default:
		return model.Filter{}
	}
}

func renderPanel(d model.Data, width, height int) string {
	innerWidth, innerHeight := components.InnerSize(width, height)
	title := d.Active.String()
	if d.Active == model.PanelJobs {
		title = jobsTitle(d.Jobs)
	}
	p := components.NewPanel(title).WithDimensions(width, height)

	switch d.Active {
	case model.PanelConfig:
		p.WithContent(configTable(d.Config, innerWidth, innerHeight))
	case model.PanelJobs:
		p.WithTabs(jobsTabs(d.Jobs), int(d.Jobs.Section))
		p.WithContent(jobsSection(d.Jobs, innerWidth, innerHeight))
	case model.PanelJobRuns:
		p.WithTabs([]string{model.RunsList.String(), model.RunsDetails.String()}, int(d.JobRuns.View))
		if d.JobRuns.View == model.RunsDetails {
			p.WithContent(runDetails(d.JobRuns, innerWidth, innerHeight))
		} else {
			p.WithContent(runsTable(d.JobRuns, innerWidth, innerHeight))
		}
	case model.PanelTaskInstances:
		p.WithTabs([]string{model.TasksAll.String(), model.TasksFailed.String(), model.TasksRunning.String()}, int(d.TaskInstances.Tab))
		p.WithContent(tasksTable(d.TaskInstances, innerWidth, innerHeight))
	case model.PanelLogs:
		tabs := make([]string, d.Logs.Attempts)
		for i := range tabs {
			tabs[i] = fmt.Sprintf("#%d", i+1)
		}
		p.WithTabs(tabs, d.Logs.Current-1)
		p.WithContent(logBody(d.Logs, innerWidth, innerHeight))
	}
	return p.Render()
}

package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/model"
)

func activePopup(d model.Data) model.Popup {
	switch d.Active {
	case model.PanelConfig:
		return d.Config.Popup
	case model.PanelJobs:
		return d.Jobs.Popup
	case model.PanelJobRuns:
		return d.JobRuns.Popup
	case model.PanelTaskInstances:
		return d.TaskInstances.Popup
	case model.PanelLogs:
		return d.Logs.Popup
	default:
		return model.Popup{}
	}
}

// renderPopup returns the open popup of the active panel, or "".
func renderPopup(d model.Data, width, height int) string {
	p := activePopup(d)
	switch p.Kind {
	case model.PopupHelp:
		return helpPopup(d.Active, width)
	case model.PopupConfirmTrigger:
		return confirm(fmt.Sprintf("Trigger a new run of %s?", p.Target))
	case model.PopupConfirmClear:
		return confirm(fmt.Sprintf("Clear %s? Its tasks will run again.", p.Target))
	case model.PopupMarkRun, model.PopupMarkTask:
		return markPopup(p)
	case model.PopupCode:
		return codePopup(d.JobRuns, width, height)
	case model.PopupVariable:
		return variablePopup(d.Jobs, p.Target, width, height)
	case model.PopupConnection:
		return connectionPopup(d.Jobs, p.Target, width, height)
	case model.PopupImportErrors:
		return importErrorsPopup(d.Jobs, width, height)
	default:
		return ""
	}
}

func helpPopup(panel model.PanelKind, width int) string {
	h := help.New()
	h.Width = max(width-8, 20)
	bindings := [][]key.Binding{model.Keys.PanelHelp(panel)}
	bindings = append(bindings, model.Keys.FullHelp()...)
	body := design.PopupTitleStyle.Render(panel.String()+" keys") + "\n" + h.FullHelpView(bindings)
	return design.PopupStyle.Render(body)
}

func confirm(question string) string {
	body := design.PopupTitleStyle.Render(question) + "\n" + design.DimStyle.Render("y confirm · n cancel")
	return design.PopupStyle.Render(body)
}

func markPopup(p model.Popup) string {
	lines := []string{design.PopupTitleStyle.Render("Mark " + p.Target + " as")}
	for i, state := range p.Choices() {
		lines = append(lines, choice(state, i == p.Cursor))
	}
	lines = append(lines, "", design.DimStyle.Render("enter select · esc cancel"))
	return design.PopupStyle.Render(strings.Join(lines, "\n"))
}

func choice(state airflow.RunState, selected bool) string {
	if selected {
		return design.ChoiceSelectedStyle.Render("› " + state.String())
	}
	return design.ChoiceStyle.Render("  " + design.StateStyle(state).Render(state.String()))
}

func codePopup(p model.JobRunsPanel, width, height int) string {
	innerWidth := max(width-8, 20)
	innerHeight := max(height-6, 3)
	title := design.PopupTitleStyle.Render(p.Job.ID + " source")
	var body string
	switch {
	case p.CodeLoading:
		body = "Loading..."
	case p.Code == "":
		body = design.DimStyle.Render("No source available.")
	default:
		body = clampLines(highlightPython(p.Code), p.CodeScroll, innerWidth, innerHeight)
	}
	return design.PopupStyle.Width(innerWidth + design.PopupStyle.GetHorizontalPadding()).Render(title + "\n" + body)
}

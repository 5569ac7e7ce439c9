package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/model"
)

// jobsTabs labels the sections, the DAG section with its tab.
func jobsTabs(p model.JobsPanel) []string {
	tabs := make([]string, len(model.Sections))
	for i, s := range model.Sections {
		tabs[i] = s.String()
		if s == model.SectionDAGs {
			tabs[i] += " (" + p.Tab.String() + ")"
		}
	}
	return tabs
}

func jobsTitle(p model.JobsPanel) string {
	title := model.PanelJobs.String()
	switch n := len(p.ImportErrors); n {
	case 0:
	case 1:
		title += " · 1 import error"
	default:
		title += fmt.Sprintf(" · %d import errors", n)
	}
	return title
}

func jobsSection(p model.JobsPanel, width, height int) string {
	switch p.Section {
	case model.SectionVariables:
		return variablesTable(p, width, height)
	case model.SectionConnections:
		return connectionsTable(p, width, height)
	default:
		return jobsTable(p, width, height)
	}
}

func variablesTable(p model.JobsPanel, width, height int) string {
	cols := []column{
		{title: "KEY", flex: true},
		{title: "VALUE", flex: true},
		{title: "DESCRIPTION", flex: true},
	}
	items := p.Variables.Items()
	rows := make([]row, len(items))
	for i, v := range items {
		rows[i] = row{cells: []string{v.Name, firstLine(v.Value), v.Description}, stateCol: -1}
	}
	return renderTable(cols, rows, p.Variables.Index(), width, height, loadingOr(p.SectionLoading, "No variables."))
}

func connectionsTable(p model.JobsPanel, width, height int) string {
	cols := []column{
		{title: "CONNECTION", flex: true},
		{title: "TYPE", width: 14},
		{title: "HOST", flex: true},
		{title: "PORT", width: 6},
	}
	items := p.Connections.Items()
	rows := make([]row, len(items))
	for i, c := range items {
		port := "-"
		if c.Port > 0 {
			port = strconv.Itoa(c.Port)
		}
		rows[i] = row{cells: []string{c.ID, c.Type, c.Host, port}, stateCol: -1}
	}
	return renderTable(cols, rows, p.Connections.Index(), width, height, loadingOr(p.SectionLoading, "No connections."))
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " …"
	}
	return line
}

// prettyJSON indents s when it is a JSON document and returns it unchanged
// otherwise.
func prettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

func variablePopup(p model.JobsPanel, target string, width, height int) string {
	innerWidth := max(width-8, 20)
	v, ok := p.FindVariable(target)
	if !ok {
		return ""
	}
	lines := []string{design.PopupTitleStyle.Render(v.Name)}
	if v.Description != "" {
		lines = append(lines, design.DimStyle.Render(v.Description))
	}
	lines = append(lines, "", clampLines(prettyJSON(v.Value), 0, innerWidth, max(height-10, 3)))
	return design.PopupStyle.Render(strings.Join(lines, "\n"))
}

// connectionPopup never shows the password; the API does not return it.
func connectionPopup(p model.JobsPanel, target string, width, height int) string {
	innerWidth := max(width-8, 20)
	c, ok := p.FindConnection(target)
	if !ok {
		return ""
	}
	field := func(name, value string) string {
		if value == "" {
			value = "-"
		}
		return design.DimStyle.Render(fmt.Sprintf("%-8s ", name)) + value
	}
	port := ""
	if c.Port > 0 {
		port = strconv.Itoa(c.Port)
	}
	lines := []string{
		design.PopupTitleStyle.Render(c.ID),
		field("type", c.Type),
		field("host", c.Host),
		field("port", port),
		field("schema", c.Schema),
		field("login", c.Login),
	}
	if c.Description != "" {
		lines = append(lines, field("about", c.Description))
	}
	if c.Extra != "" {
		lines = append(lines, "", design.DimStyle.Render("extra"),
			clampLines(prettyJSON(c.Extra), 0, innerWidth, max(height-14, 3)))
	}
	return design.PopupStyle.Render(strings.Join(lines, "\n"))
}

func importErrorsPopup(p model.JobsPanel, width, height int) string {
	innerWidth := max(width-8, 20)
	innerHeight := max(height-6, 3)
	title := design.PopupTitleStyle.Render("Import errors")
	var body string
	switch {
	case p.ImportErrors == nil:
		body = "Loading..."
	case len(p.ImportErrors) == 0:
		body = design.DimStyle.Render("No import errors.")
	default:
		body = clampLines(importErrorText(p.ImportErrors), p.ImportsScroll, innerWidth, innerHeight)
	}
	return design.PopupStyle.Width(innerWidth + design.PopupStyle.GetHorizontalPadding()).Render(title + "\n" + body)
}

func importErrorText(errs []airflow.ImportError) string {
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s\n", e.Filename, relTime(e.Timestamp))
		b.WriteString(strings.TrimRight(e.StackTrace, "\n"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

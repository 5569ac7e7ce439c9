package view

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/terakael/flowrs/internal/tui/model"
)

// runDetails renders the selected run as markdown.
func runDetails(p model.JobRunsPanel, width, height int) string {
	run, ok := p.List.Selected()
	if !ok {
		return loadingOr(p.Loading, "No run selected.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", run.RunID)
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| DAG | %s |\n", run.JobID)
	fmt.Fprintf(&b, "| State | %s |\n", run.State)
	fmt.Fprintf(&b, "| Type | %s |\n", run.RunType)
	fmt.Fprintf(&b, "| Logical date | %s |\n", formatTime(run.LogicalDate))
	fmt.Fprintf(&b, "| Started | %s |\n", formatTime(run.StartDate))
	fmt.Fprintf(&b, "| Ended | %s |\n", formatTime(run.EndDate))
	fmt.Fprintf(&b, "| Duration | %s |\n", duration(run.Duration(now())))
	if run.Note != "" {
		fmt.Fprintf(&b, "\n## Note\n\n%s\n", run.Note)
	}
	if len(run.Conf) > 0 {
		fmt.Fprintf(&b, "\n## Conf\n\n```json\n%s\n```\n", confJSON(run.Conf))
	}
	if p.Job.Description != "" {
		fmt.Fprintf(&b, "\n## DAG\n\n%s\n", p.Job.Description)
	}

	out, err := markdown(b.String(), width)
	if err != nil {
		out = b.String()
	}
	return clampLines(strings.Trim(out, "\n"), 0, width, height)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339) + " (" + relTime(t) + ")"
}

func confJSON(conf map[string]any) string {
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return fmt.Sprint(conf)
	}
	return string(data)
}

func markdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestPanel_Render_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		title   string
		content string
	}{
		{
			name:    "zero dimensions",
			title:   "DAGs",
			content: "etl_daily",
		},
		{
			name:    "negative dimensions",
			width:   -10,
			height:  -5,
			title:   "DAGs",
			content: "etl_daily",
		},
		{
			name:   "empty content",
			width:  40,
			height: 10,
			title:  "DAG Runs",
		},
		{
			name:    "very long content",
			width:   20,
			height:  8,
			title:   "Logs",
			content: strings.Repeat("This is a very long line that should be cut. ", 10),
		},
		{
			name:    "multiline content exceeding height",
			width:   30,
			height:  8,
			title:   "Tasks",
			content: "Line 1\nLine 2\nLine 3\nLine 4\nLine 5\nLine 6\nLine 7\nLine 8\nLine 9\nLine 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewPanel(tt.title).
				WithDimensions(tt.width, tt.height).
				WithContent(tt.content).
				Render()

			wantWidth := max(tt.width, 20)
			wantHeight := max(tt.height, 8)
			assert.Equal(t, wantWidth, lipgloss.Width(out))
			assert.Equal(t, wantHeight, lipgloss.Height(out))
			assert.Contains(t, out, tt.title)
		})
	}
}

func TestPanel_Tabs(t *testing.T) {
	out := NewPanel("DAGs").
		WithDimensions(60, 8).
		WithTabs([]string{"All", "Active", "Paused"}, 1).
		Render()
	for _, tab := range []string{"All", "Active", "Paused"} {
		assert.Contains(t, out, tab)
	}
}

func TestStatusBar(t *testing.T) {
	out := NewStatusBar(40).WithLeftText("prod").WithRightText("? help").Render()
	assert.Equal(t, 40, lipgloss.Width(out))
	assert.Contains(t, out, "prod")
	assert.Contains(t, out, "? help")

	out = NewStatusBar(12).WithLeftText("a-very-long-server-name").WithRightText("? help").Render()
	assert.Equal(t, 12, lipgloss.Width(out))
	assert.NotContains(t, out, "? help")
}

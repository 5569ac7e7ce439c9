package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/utils"
)

// Panel is a bordered box with a title line, optional tabs and a body cut
// to fit.
type Panel struct {
	Title   string
	Tabs    []string
	Active  int
	Content string
	Width   int
	Height  int
}

// NewPanel creates a new panel with default settings
func NewPanel(title string) *Panel {
	return &Panel{
		Title:  title,
		Width:  design.MinPanelWidth,
		Height: design.MinPanelHeight,
		Active: -1,
	}
}

// WithContent sets the panel content
func (p *Panel) WithContent(content string) *Panel {
	p.Content = content
	return p
}

// WithDimensions sets the panel dimensions
func (p *Panel) WithDimensions(width, height int) *Panel {
	p.Width = width
	p.Height = height
	return p
}

// WithTabs sets the tab names and the highlighted one.
func (p *Panel) WithTabs(tabs []string, active int) *Panel {
	p.Tabs = tabs
	p.Active = active
	return p
}

// InnerSize is the body area left inside the border, title line and
// padding for the given outer size.
func InnerSize(width, height int) (int, int) {
	w := max(width, design.MinPanelWidth) - design.PanelStyle.GetHorizontalFrameSize()
	h := max(height, design.MinPanelHeight) - design.PanelStyle.GetVerticalFrameSize() - 1
	return max(w, 1), max(h, 1)
}

// Render returns the styled panel
func (p *Panel) Render() string {
	width := max(p.Width, design.MinPanelWidth)
	height := max(p.Height, design.MinPanelHeight)
	innerWidth, innerHeight := InnerSize(width, height)

	lines := []string{p.renderTitle(innerWidth)}
	body := strings.Split(utils.ExpandTabs(p.Content), "\n")
	if p.Content == "" {
		body = nil
	}
	if len(body) > innerHeight {
		body = body[:innerHeight]
	}
	for _, line := range body {
		if lipgloss.Width(line) > innerWidth {
			line = lipgloss.NewStyle().MaxWidth(innerWidth).Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < innerHeight+1 {
		lines = append(lines, "")
	}

	return design.PanelStyle.
		Width(width - design.PanelStyle.GetHorizontalBorderSize()).
		Height(height - design.PanelStyle.GetVerticalBorderSize()).
		Render(strings.Join(lines, "\n"))
}

func (p *Panel) renderTitle(width int) string {
	parts := []string{design.TitleStyle.Render(p.Title)}
	for i, tab := range p.Tabs {
		style := design.TabStyle
		if i == p.Active {
			style = design.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab))
	}
	title := strings.Join(parts, " ")
	if lipgloss.Width(title) > width {
		return design.TitleStyle.Render(utils.TruncateString(p.Title, width))
	}
	return title
}

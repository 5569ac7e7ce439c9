package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/terakael/flowrs/internal/tui/design"
	"github.com/terakael/flowrs/internal/tui/utils"
)

// StatusBar represents the bottom status bar
type StatusBar struct {
	Width     int
	LeftText  string
	RightText string
}

// NewStatusBar creates a new status bar
func NewStatusBar(width int) *StatusBar {
	return &StatusBar{Width: width}
}

// WithLeftText sets the left side text
func (s *StatusBar) WithLeftText(text string) *StatusBar {
	s.LeftText = text
	return s
}

// WithRightText sets the right side text
func (s *StatusBar) WithRightText(text string) *StatusBar {
	s.RightText = text
	return s
}

// Render returns the styled status bar
func (s *StatusBar) Render() string {
	style := design.StatusBarStyle
	inner := max(s.Width-style.GetHorizontalFrameSize(), 0)

	var content string
	leftWidth := lipgloss.Width(s.LeftText)
	rightWidth := lipgloss.Width(s.RightText)
	switch {
	case s.RightText == "":
		content = utils.TruncateString(s.LeftText, inner)
	case leftWidth+rightWidth+1 <= inner:
		content = s.LeftText + strings.Repeat(" ", inner-leftWidth-rightWidth) + s.RightText
	default:
		// Not enough space, just show left text
		content = utils.TruncateString(s.LeftText, inner)
	}

	return style.
		Width(s.Width).
		MaxWidth(s.Width).
		Render(content)
}

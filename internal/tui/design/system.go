package design

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/terakael/flowrs/internal/airflow"
)

// Spacing units, in cells.
const (
	SpaceNone = 0
	SpaceXS   = 1
	SpaceSM   = 2
	SpaceMD   = 3

	MinPanelHeight = 8
	MinPanelWidth  = 20
)

// Color Palette - Semantic colors with consistent light/dark mode support
var (
	ColorPrimary = lipgloss.AdaptiveColor{
		Light: "#5A56E0",
		Dark:  "#7571F9",
	}
	ColorSecondary = lipgloss.AdaptiveColor{
		Light: "#6B7280",
		Dark:  "#9CA3AF",
	}

	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#059669",
		Dark:  "#10B981",
	}
	ColorError = lipgloss.AdaptiveColor{
		Light: "#DC2626",
		Dark:  "#EF4444",
	}
	ColorWarning = lipgloss.AdaptiveColor{
		Light: "#D97706",
		Dark:  "#F59E0B",
	}
	ColorInfo = lipgloss.AdaptiveColor{
		Light: "#2563EB",
		Dark:  "#3B82F6",
	}
	ColorUpstream = lipgloss.AdaptiveColor{
		Light: "#C2410C",
		Dark:  "#FB923C",
	}
	ColorSkipped = lipgloss.AdaptiveColor{
		Light: "#DB2777",
		Dark:  "#F472B6",
	}
	ColorQueued = lipgloss.AdaptiveColor{
		Light: "#4B5563",
		Dark:  "#D1D5DB",
	}

	ColorSurface = lipgloss.AdaptiveColor{
		Light: "#F9FAFB",
		Dark:  "#1A1A1A",
	}
	ColorSurfaceAlt = lipgloss.AdaptiveColor{
		Light: "#F3F4F6",
		Dark:  "#262626",
	}
	ColorBorder = lipgloss.AdaptiveColor{
		Light: "#E5E7EB",
		Dark:  "#404040",
	}
	ColorBorderFocus = lipgloss.AdaptiveColor{
		Light: "#5A56E0",
		Dark:  "#7571F9",
	}

	ColorText = lipgloss.AdaptiveColor{
		Light: "#111827",
		Dark:  "#F9FAFB",
	}
	ColorTextSecondary = lipgloss.AdaptiveColor{
		Light: "#6B7280",
		Dark:  "#9CA3AF",
	}
	ColorTextMuted = lipgloss.AdaptiveColor{
		Light: "#9CA3AF",
		Dark:  "#6B7280",
	}
	ColorHighlight = lipgloss.AdaptiveColor{
		Light: "#EEF2FF",
		Dark:  "#312E81",
	}
	ColorBackgroundOverlay = lipgloss.AdaptiveColor{
		Light: "#FFFFFF",
		Dark:  "#1E1E1E",
	}
)

// Base styles
var (
	TextStyle          = lipgloss.NewStyle().Foreground(ColorText)
	TextSecondaryStyle = lipgloss.NewStyle().Foreground(ColorTextSecondary)
	TextErrorStyle     = lipgloss.NewStyle().Foreground(ColorError)
	TextWarningStyle   = lipgloss.NewStyle().Foreground(ColorWarning)
	DimStyle           = lipgloss.NewStyle().Foreground(ColorTextMuted)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderFocus).
			Padding(0, SpaceXS)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

// Header and tabs
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Background(ColorSurface).
			Padding(0, SpaceSM)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary).
			Padding(0, SpaceXS)

	ActiveTabStyle = TabStyle.
			Foreground(ColorPrimary).
			Bold(true).
			Underline(true)

	BreadcrumbSeparator = DimStyle.Render(" › ")
)

// Tables
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorTextSecondary)

	RowStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Background(ColorHighlight).
				Bold(true)

	PendingRowStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)
)

// Banner, status bar and popups
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(ColorBackgroundOverlay).
			Background(ColorError).
			Bold(true).
			Padding(0, SpaceXS)

	StatusBarStyle = lipgloss.NewStyle().
			Background(ColorSurfaceAlt).
			Foreground(ColorTextSecondary).
			Padding(0, SpaceXS)

	FilterStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	PopupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderFocus).
			Background(ColorBackgroundOverlay).
			Foreground(ColorText).
			Padding(SpaceXS, SpaceSM)

	PopupTitleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1).
			Foreground(ColorPrimary)

	ChoiceStyle = lipgloss.NewStyle().
			PaddingLeft(SpaceSM)

	ChoiceSelectedStyle = ChoiceStyle.
				Foreground(ColorPrimary).
				Bold(true)
)

// StateColor maps an Airflow state to its palette color.
func StateColor(s airflow.RunState) lipgloss.TerminalColor {
	switch s {
	case airflow.StateSuccess:
		return ColorSuccess
	case airflow.StateFailed:
		return ColorError
	case airflow.StateRunning, airflow.StateRestarting:
		return ColorInfo
	case airflow.StateUpForRetry, airflow.StateUpForReschedule, airflow.StateDeferred:
		return ColorWarning
	case airflow.StateUpstreamFailed:
		return ColorUpstream
	case airflow.StateSkipped, airflow.StateRemoved:
		return ColorSkipped
	case airflow.StateQueued, airflow.StateScheduled:
		return ColorQueued
	default:
		return ColorTextMuted
	}
}

// StateStyle renders a state name in its color.
func StateStyle(s airflow.RunState) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StateColor(s))
}

// CenterHorizontal pads content to sit in the middle of width cells.
func CenterHorizontal(width int, content string) string {
	contentWidth := lipgloss.Width(content)
	if contentWidth >= width {
		return content
	}
	padding := (width - contentWidth) / 2
	return lipgloss.NewStyle().
		PaddingLeft(padding).
		Width(width).
		Render(content)
}

// Initialize sets up the design system
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

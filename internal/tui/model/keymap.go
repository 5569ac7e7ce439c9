package model

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the application.
// It also drives the help popup through help.KeyMap.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageDown key.Binding
	HalfPageUp   key.Binding

	Enter   key.Binding
	Next    key.Binding
	Back    key.Binding
	Tab     key.Binding
	Quit    key.Binding
	Dismiss key.Binding

	Filter  key.Binding
	Help    key.Binding
	Refresh key.Binding

	Pause   key.Binding
	Trigger key.Binding
	Mark    key.Binding
	Clear   key.Binding
	Code    key.Binding
	Copy    key.Binding
	Select  key.Binding
	Open    key.Binding
	Edit    key.Binding

	NextSection  key.Binding
	PrevSection  key.Binding
	ImportErrors key.Binding

	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns a KeyMap with default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Next: key.NewBinding(
			key.WithKeys("enter", "right"),
			key.WithHelp("→", "next panel"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "left"),
			key.WithHelp("esc/←", "previous panel"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle view"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss error"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/unpause"),
		),
		Trigger: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trigger run"),
		),
		Mark: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark state"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Code: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "view code"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy log"),
		),
		Select: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "select for marking"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "open in editor"),
		),
		NextSection: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next section"),
		),
		PrevSection: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous section"),
		),
		ImportErrors: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "import errors"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y/enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc", "q"),
			key.WithHelp("n/esc", "cancel"),
		),
	}
}

// Keys is the key map used by every panel.
var Keys = DefaultKeyMap()

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Back, k.Filter, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.Enter, k.Next, k.Back, k.Tab, k.Filter, k.Refresh},
		{k.Help, k.Quit, k.Dismiss},
	}
}

// PanelHelp returns the panel specific bindings for the help popup.
func (k KeyMap) PanelHelp(p PanelKind) []key.Binding {
	switch p {
	case PanelConfig:
		return []key.Binding{withHelp(k.Enter, "use server"), k.Open}
	case PanelJobs:
		return []key.Binding{withHelp(k.Enter, "show runs"), k.Pause, k.Open, k.NextSection, k.PrevSection, k.ImportErrors, withHelp(k.Tab, "all/active/paused")}
	case PanelJobRuns:
		return []key.Binding{withHelp(k.Enter, "show tasks"), k.Trigger, k.Mark, k.Select, k.Clear, k.Code, k.Open, withHelp(k.Tab, "runs/details")}
	case PanelTaskInstances:
		return []key.Binding{withHelp(k.Enter, "show logs"), k.Mark, k.Select, k.Clear, k.Open, withHelp(k.Tab, "all/failed/running")}
	case PanelLogs:
		return []key.Binding{k.Copy, k.Edit, k.Open, withHelp(k.Tab, "next attempt"), key.NewBinding(key.WithKeys("1"), key.WithHelp("1-9", "attempt"))}
	default:
		return nil
	}
}

func withHelp(b key.Binding, desc string) key.Binding {
	h := b.Help()
	return key.NewBinding(key.WithKeys(b.Keys()...), key.WithHelp(h.Key, desc))
}

package model

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
)

// PopupKind is the modal sub-state of a panel. While a popup is open it
// receives all keys.
type PopupKind int

const (
	PopupNone PopupKind = iota
	PopupHelp
	PopupConfirmTrigger
	PopupMarkRun
	PopupConfirmClear
	PopupMarkTask
	PopupCode
	PopupVariable
	PopupConnection
	PopupImportErrors
)

func (k PopupKind) String() string {
	switch k {
	case PopupNone:
		return "None"
	case PopupHelp:
		return "Help"
	case PopupConfirmTrigger:
		return "ConfirmTrigger"
	case PopupMarkRun:
		return "MarkRun"
	case PopupConfirmClear:
		return "ConfirmClear"
	case PopupMarkTask:
		return "MarkTask"
	case PopupCode:
		return "Code"
	case PopupVariable:
		return "Variable"
	case PopupConnection:
		return "Connection"
	case PopupImportErrors:
		return "ImportErrors"
	default:
		return "Unknown"
	}
}

// Popup holds the open popup and its cursor.
type Popup struct {
	Kind   PopupKind
	Cursor int
	// Target is the row key the popup acts on.
	Target string
	// Targets, when set, are the row keys of a multi-row mark.
	Targets []string
}

// Open reports whether a popup is shown.
func (p Popup) Open() bool { return p.Kind != PopupNone }

// Choices returns the states offered by a mark popup.
func (p Popup) Choices() []airflow.RunState {
	switch p.Kind {
	case PopupMarkRun:
		return airflow.MarkableRunStates
	case PopupMarkTask:
		return airflow.MarkableTaskStates
	default:
		return nil
	}
}

func (p *Popup) close() { *p = Popup{} }

// handleHelp closes the help popup on any key.
func (p *Popup) handleHelp(ev Event) bool {
	if p.Kind != PopupHelp || ev.IsTick() {
		return false
	}
	p.close()
	return true
}

// choose moves the cursor of a mark popup. It returns the picked state when
// ev confirms the choice.
func (p *Popup) choose(ev Event) (airflow.RunState, bool) {
	choices := p.Choices()
	if len(choices) == 0 {
		p.close()
		return "", false
	}
	switch {
	case key.Matches(ev, Keys.Down):
		p.Cursor = min(p.Cursor+1, len(choices)-1)
	case key.Matches(ev, Keys.Up):
		p.Cursor = max(p.Cursor-1, 0)
	case key.Matches(ev, Keys.Enter):
		picked := choices[p.Cursor]
		return picked, true
	case key.Matches(ev, Keys.Cancel):
		p.close()
	}
	return "", false
}

// confirm reports true when ev accepts a yes/no popup and closes the popup
// on both answers.
func (p *Popup) confirm(ev Event) bool {
	switch {
	case key.Matches(ev, Keys.Confirm):
		p.close()
		return true
	case key.Matches(ev, Keys.Cancel):
		p.close()
	}
	return false
}

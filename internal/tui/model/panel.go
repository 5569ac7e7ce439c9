package model

// PanelKind identifies one of the five views. The constant order is the
// navigation order.
type PanelKind int

const (
	PanelConfig PanelKind = iota
	PanelJobs
	PanelJobRuns
	PanelTaskInstances
	PanelLogs
)

// Panels lists every kind in navigation order.
var Panels = []PanelKind{PanelConfig, PanelJobs, PanelJobRuns, PanelTaskInstances, PanelLogs}

// String provides a human-readable representation of the PanelKind.
func (p PanelKind) String() string {
	switch p {
	case PanelConfig:
		return "Config"
	case PanelJobs:
		return "DAGs"
	case PanelJobRuns:
		return "DAG Runs"
	case PanelTaskInstances:
		return "Tasks"
	case PanelLogs:
		return "Logs"
	default:
		return "Unknown"
	}
}

// Next returns the following panel, or p itself at the end.
func (p PanelKind) Next() PanelKind {
	if p >= PanelLogs {
		return PanelLogs
	}
	return p + 1
}

// Prev returns the preceding panel, or p itself at the start.
func (p PanelKind) Prev() PanelKind {
	if p <= PanelConfig {
		return PanelConfig
	}
	return p - 1
}

package model

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"

	"github.com/terakael/flowrs/internal/airflow"
)

// ScrollEnd scrolls a log to its last line; the view clamps it.
const ScrollEnd = 1 << 30

// LogsPanel shows the log of one task instance, one attempt at a time.
type LogsPanel struct {
	JobID    string
	RunID    string
	TaskID   string
	Attempts int
	// Current is the displayed attempt, 1-based.
	Current int
	Content map[int]string
	// Failed holds the error of attempts whose fetch failed.
	Failed map[int]string

	Scroll int
	Popup  Popup
}

// Open switches the panel to a task instance, showing its last attempt.
func (p *LogsPanel) Open(jobID, runID, taskID string, attempts int) {
	*p = LogsPanel{
		JobID:    jobID,
		RunID:    runID,
		TaskID:   taskID,
		Attempts: max(attempts, 1),
		Current:  max(attempts, 1),
		Content:  map[int]string{},
	}
}

// Matches reports whether the panel shows the given task instance.
func (p *LogsPanel) Matches(jobID, runID, taskID string) bool {
	return p.TaskID != "" && p.JobID == jobID && p.RunID == runID && p.TaskID == taskID
}

// SetAttempt stores the log text of an attempt.
func (p *LogsPanel) SetAttempt(attempt int, text string) {
	if p.Content == nil {
		p.Content = map[int]string{}
	}
	p.Content[attempt] = text
	delete(p.Failed, attempt)
	if attempt > p.Attempts {
		p.Attempts = attempt
	}
}

// SetFailed records that fetching attempt failed, unless it is already
// loaded.
func (p *LogsPanel) SetFailed(attempt int, msg string) {
	if _, ok := p.Content[attempt]; ok {
		return
	}
	if p.Failed == nil {
		p.Failed = map[int]string{}
	}
	p.Failed[attempt] = msg
}

// FailedText returns the error of the current attempt, if its fetch failed.
func (p *LogsPanel) FailedText() (string, bool) {
	msg, ok := p.Failed[p.Current]
	return msg, ok
}

// Text returns the log of the current attempt and whether it is loaded.
func (p *LogsPanel) Text() (string, bool) {
	text, ok := p.Content[p.Current]
	return text, ok
}

// CycleTab shows the next attempt, wrapping to the first.
func (p *LogsPanel) CycleTab() {
	if p.Attempts <= 0 {
		return
	}
	p.Current = p.Current%p.Attempts + 1
	p.Scroll = 0
}

// Update handles ev for the Logs panel.
func (p *LogsPanel) Update(ev Event) (*Event, []Command) {
	if ev.IsTick() {
		return fallback(ev)
	}
	if p.Popup.handleHelp(ev) {
		return nil, nil
	}

	if n, err := strconv.Atoi(ev.Key); err == nil && n >= 1 && n <= 9 {
		if n <= p.Attempts {
			p.Current = n
			p.Scroll = 0
		}
		return nil, nil
	}

	switch {
	case key.Matches(ev, Keys.Down):
		p.Scroll++
	case key.Matches(ev, Keys.Up):
		p.Scroll = max(p.Scroll-1, 0)
	case key.Matches(ev, Keys.HalfPageDown):
		p.Scroll += HalfPage
	case key.Matches(ev, Keys.HalfPageUp):
		p.Scroll = max(p.Scroll-HalfPage, 0)
	case key.Matches(ev, Keys.Top):
		p.Scroll = 0
	case key.Matches(ev, Keys.Bottom):
		p.Scroll = ScrollEnd
	case key.Matches(ev, Keys.Help):
		p.Popup = Popup{Kind: PopupHelp}
	case key.Matches(ev, Keys.Refresh):
		if p.TaskID == "" {
			return nil, nil
		}
		delete(p.Failed, p.Current)
		return nil, []Command{FetchLogs{
			JobID:    p.JobID,
			RunID:    p.RunID,
			TaskID:   p.TaskID,
			Attempt:  p.Current,
			Attempts: p.Attempts,
		}}
	case key.Matches(ev, Keys.Copy):
		text, ok := p.Text()
		if !ok {
			return nil, nil
		}
		label := fmt.Sprintf("%s attempt %d", p.TaskID, p.Current)
		return nil, []Command{CopyToClipboard{Label: label, Text: text}}
	case key.Matches(ev, Keys.Edit):
		text, ok := p.Text()
		if !ok {
			return nil, nil
		}
		return nil, []Command{EditLog{TaskID: p.TaskID, Attempt: p.Current, Text: text}}
	case key.Matches(ev, Keys.Open):
		if p.TaskID == "" {
			return nil, nil
		}
		return nil, []Command{OpenInBrowser{Item: airflow.WebTarget{
			JobID:   p.JobID,
			RunID:   p.RunID,
			TaskID:  p.TaskID,
			Attempt: p.Current,
		}}}
	default:
		return fallback(ev)
	}
	return nil, nil
}

func (p *LogsPanel) clone() LogsPanel {
	out := *p
	if p.Content != nil {
		out.Content = make(map[int]string, len(p.Content))
		for k, v := range p.Content {
			out.Content[k] = v
		}
	}
	if p.Failed != nil {
		out.Failed = make(map[int]string, len(p.Failed))
		for k, v := range p.Failed {
			out.Failed[k] = v
		}
	}
	return out
}

package view

import (
	"fmt"

	"github.com/terakael/flowrs/internal/tui/model"
)

func logBody(p model.LogsPanel, width, height int) string {
	text, ok := p.Text()
	if !ok {
		if msg, failed := p.FailedText(); failed {
			return fmt.Sprintf("Could not load attempt %d: %s\nPress r to retry.", p.Current, msg)
		}
		return fmt.Sprintf("Loading attempt %d...", p.Current)
	}
	if text == "" {
		return "(empty log)"
	}
	return clampLines(text, p.Scroll, width, height)
}

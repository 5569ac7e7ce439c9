package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateString cuts s to at most width cells, ending with "…" when it
// had to cut. Wide runes count as two cells.
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// PadRight pads s with spaces to exactly width cells, truncating first.
func PadRight(s string, width int) string {
	s = TruncateString(s, width)
	return runewidth.FillRight(s, width)
}

// ExpandTabs replaces tabs so cell widths are predictable.
func ExpandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

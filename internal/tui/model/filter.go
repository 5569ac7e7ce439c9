package model

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/sahilm/fuzzy"
)

// Filter is the panel-local "/" search. While Editing, keys edit Text.
type Filter struct {
	Editing bool
	Text    string
}

// handle processes ev while editing. It reports whether ev was consumed
// and whether Text changed.
func (f *Filter) handle(ev Event) (consumed, changed bool) {
	if !f.Editing || ev.IsTick() {
		return false, false
	}
	switch ev.Key {
	case "ctrl+c":
		return false, false
	case "enter":
		f.Editing = false
		return true, false
	case "esc":
		f.Editing = false
		changed = f.Text != ""
		f.Text = ""
		return true, changed
	case "backspace":
		if f.Text == "" {
			return true, false
		}
		_, size := utf8.DecodeLastRuneInString(f.Text)
		f.Text = f.Text[:len(f.Text)-size]
		return true, true
	case "space":
		f.Text += " "
		return true, true
	}
	if utf8.RuneCountInString(ev.Key) == 1 {
		f.Text += ev.Key
		return true, true
	}
	return true, false
}

// start enters editing mode when ev is the filter key.
func (f *Filter) start(ev Event) bool {
	if !key.Matches(ev, Keys.Filter) {
		return false
	}
	f.Editing = true
	return true
}

// Matches reports whether any candidate fuzzily matches Text. An empty
// filter matches everything.
func (f Filter) Matches(candidates ...string) bool {
	pattern := strings.TrimSpace(f.Text)
	if pattern == "" {
		return true
	}
	return len(fuzzy.Find(pattern, candidates)) > 0
}

// apply returns the items of all that match f, preserving order.
func apply[T any](f Filter, all []T, keep func(T) bool, fields func(T) []string) []T {
	out := make([]T, 0, len(all))
	for _, it := range all {
		if keep != nil && !keep(it) {
			continue
		}
		if f.Matches(fields(it)...) {
			out = append(out, it)
		}
	}
	return out
}

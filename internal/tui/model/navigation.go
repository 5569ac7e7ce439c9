package model

import "github.com/charmbracelet/bubbles/key"

// HalfPage is the number of rows moved by ctrl+d and ctrl+u.
const HalfPage = 10

// navigate applies the shared list movement keys to c.
func navigate[T Keyed](c *Container[T], ev Event) bool {
	switch {
	case key.Matches(ev, Keys.Down):
		c.SelectNext()
	case key.Matches(ev, Keys.Up):
		c.SelectPrevious()
	case key.Matches(ev, Keys.Top):
		c.SelectFirst()
	case key.Matches(ev, Keys.Bottom):
		c.SelectLast()
	case key.Matches(ev, Keys.HalfPageDown):
		c.Move(HalfPage)
	case key.Matches(ev, Keys.HalfPageUp):
		c.Move(-HalfPage)
	default:
		return false
	}
	return true
}

func fallback(ev Event) (*Event, []Command) {
	return &ev, nil
}

package model

// EventKind distinguishes keypresses from periodic ticks.
type EventKind int

const (
	EventTick EventKind = iota
	EventKey
)

// Event is the unit of input consumed by panels: a key or a tick.
type Event struct {
	Kind EventKind
	// Key is the bubbletea key name, e.g. "enter", "ctrl+c" or "j".
	Key string
}

// KeyEvent builds a key Event.
func KeyEvent(k string) Event {
	return Event{Kind: EventKey, Key: k}
}

// TickEvent builds a tick Event.
func TickEvent() Event {
	return Event{Kind: EventTick}
}

// String makes Event usable with key.Matches. Ticks match no binding.
func (e Event) String() string {
	return e.Key
}

// IsTick reports whether e is a periodic tick.
func (e Event) IsTick() bool {
	return e.Kind == EventTick
}

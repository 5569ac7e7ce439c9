package controller

import (
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/internal/tui/view"
)

// Terminal adapts a bubbletea program to InputSource and Renderer. Keys
// read by bubbletea are buffered for the loop; snapshots handed to Render
// are drawn on bubbletea's next frame.
type Terminal struct {
	program *tea.Program

	mu     sync.Mutex
	inbox  []model.Event
	closed bool
	ready  chan struct{}

	snap atomic.Pointer[model.Data]
}

type redrawMsg struct{}

// NewTerminal creates the bubbletea program on the alternate screen.
func NewTerminal(opts ...tea.ProgramOption) *Terminal {
	t := newTerminal()
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	t.program = tea.NewProgram(screen{t: t}, opts...)
	return t
}

func newTerminal() *Terminal {
	return &Terminal{ready: make(chan struct{}, 1)}
}

// Run blocks until the program exits and then closes the input.
func (t *Terminal) Run() error {
	defer t.close()
	_, err := t.program.Run()
	return err
}

// Quit stops the program.
func (t *Terminal) Quit() {
	if t.program != nil {
		t.program.Quit()
	}
}

// Render implements Renderer.
func (t *Terminal) Render(d model.Data) {
	t.snap.Store(&d)
	if t.program != nil {
		t.program.Send(redrawMsg{})
	}
}

// Wake makes a waiting NextEvent return early with a tick.
func (t *Terminal) Wake() {
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

// NextEvent implements InputSource.
func (t *Terminal) NextEvent(timeout time.Duration) (model.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		t.mu.Lock()
		if len(t.inbox) > 0 {
			ev := t.inbox[0]
			t.inbox = t.inbox[1:]
			t.mu.Unlock()
			return ev, nil
		}
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return model.Event{}, ErrInputClosed
		}

		select {
		case <-t.ready:
			t.mu.Lock()
			empty := len(t.inbox) == 0 && !t.closed
			t.mu.Unlock()
			if empty {
				return model.TickEvent(), nil
			}
		case <-timer.C:
			return model.TickEvent(), nil
		}
	}
}

func (t *Terminal) push(ev model.Event) {
	t.mu.Lock()
	t.inbox = append(t.inbox, ev)
	t.mu.Unlock()
	t.Wake()
}

func (t *Terminal) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Wake()
}

// screen is the tea.Model. Update never blocks: keys go to the inbox.
type screen struct {
	t      *Terminal
	width  int
	height int
}

func (s screen) Init() tea.Cmd { return nil }

func (s screen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s.t.push(model.KeyEvent(msg.String()))
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	case execMsg:
		return s, msg.run()
	case redrawMsg:
	}
	return s, nil
}

func (s screen) View() string {
	snap := s.t.snap.Load()
	if snap == nil {
		return "Loading..."
	}
	return view.Render(*snap, s.width, s.height)
}

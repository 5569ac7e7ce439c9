// Package controller drives the application: the event loop turns input
// into state changes and commands, and Terminal connects it to bubbletea.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/google/uuid"

	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/pkg/logging"
)

// DefaultTick is how long NextEvent waits before producing a tick.
const DefaultTick = 200 * time.Millisecond

// ErrInputClosed is returned by an InputSource that will deliver no more
// events.
var ErrInputClosed = errors.New("input closed")

// InputSource delivers the next key, or a tick once timeout has elapsed
// without one.
type InputSource interface {
	NextEvent(timeout time.Duration) (model.Event, error)
}

// Renderer draws a snapshot. It must not retain references into d beyond
// the call unless it owns the copy it was given.
type Renderer interface {
	Render(d model.Data)
}

// CommandSink accepts commands for the worker. Push may wait but never
// drops a command.
type CommandSink interface {
	Push(ctx context.Context, cmd model.Command) error
}

// Loop is the single-threaded event loop.
type Loop struct {
	state    *model.State
	queue    CommandSink
	input    InputSource
	renderer Renderer
	tick     time.Duration
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTick sets the tick interval.
func WithTick(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.tick = d
		}
	}
}

// NewLoop wires the loop to its collaborators.
func NewLoop(state *model.State, queue CommandSink, input InputSource, renderer Renderer, opts ...LoopOption) *Loop {
	l := &Loop{
		state:    state,
		queue:    queue,
		input:    input,
		renderer: renderer,
		tick:     DefaultTick,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bootstrap loads the jobs of the server selected at startup.
func (l *Loop) Bootstrap(ctx context.Context, server string) error {
	if server == "" {
		return nil
	}
	var cmds []model.Command
	err := l.state.Mutate(func(d *model.Data) {
		cmds = stampAll(d, []model.Command{model.SwitchServer{Server: server}})
	})
	if err != nil {
		return err
	}
	return l.enqueue(ctx, cmds)
}

// Run renders, waits for input and handles it until the user quits, the
// input closes or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	logging.Debug("Loop", "started with tick %s", l.tick)
	defer logging.Debug("Loop", "stopped")
	for {
		if ctx.Err() != nil {
			return nil
		}
		snap, err := l.state.Snapshot()
		if err != nil {
			return err
		}
		l.renderer.Render(snap)

		ev, err := l.input.NextEvent(l.tick)
		if errors.Is(err, ErrInputClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		quit, err := l.Handle(ctx, ev)
		if err != nil {
			return err
		}
		if quit {
			logging.Info("Loop", "quit requested")
			return nil
		}
	}
}

// Handle applies one event. The panel update, command preparation and
// global keys happen in one critical section; commands are enqueued after
// the lock is released, in the order they were emitted.
func (l *Loop) Handle(ctx context.Context, ev model.Event) (quit bool, err error) {
	var cmds []model.Command
	err = l.state.Mutate(func(d *model.Data) {
		if ev.IsTick() {
			d.Ticks++
		}
		if d.Banner != nil && !ev.IsTick() && key.Matches(ev, model.Keys.Dismiss) && !d.Capturing() {
			d.Banner = nil
			return
		}

		fallback, emitted := d.Dispatch(ev)
		// Prepared first so a fallback "enter" can move into the panel
		// the command just opened.
		cmds = stampAll(d, emitted)
		if fallback != nil {
			quit = d.ApplyGlobal(*fallback)
		}
	})
	if err != nil {
		return false, err
	}
	if err := l.enqueue(ctx, cmds); err != nil {
		return quit, err
	}
	return quit, nil
}

// stampAll prepares each command against d and tags it with the server
// context it was issued in. Must run under the state lock.
func stampAll(d *model.Data, cmds []model.Command) []model.Command {
	out := make([]model.Command, 0, len(cmds))
	for _, cmd := range cmds {
		d.Prepare(cmd)
		out = append(out, model.Stamped(cmd, model.Stamp{
			Generation: d.Generation,
			Server:     d.ActiveServer,
			ID:         uuid.NewString(),
		}))
	}
	return out
}

func (l *Loop) enqueue(ctx context.Context, cmds []model.Command) error {
	for _, cmd := range cmds {
		tag := cmd.Tag()
		logging.Debug("Loop", "enqueue %s %s (id=%s generation=%d)", cmd.Name(), cmd.Target(), tag.ID, tag.Generation)
		if err := l.queue.Push(ctx, cmd); err != nil {
			return fmt.Errorf("enqueueing %s: %w", cmd.Name(), err)
		}
	}
	return nil
}

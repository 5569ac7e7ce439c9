package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terakael/flowrs/internal/airflow"
	"github.com/terakael/flowrs/internal/tui/model"
)

type scriptedInput struct {
	events []model.Event
}

func (s *scriptedInput) NextEvent(time.Duration) (model.Event, error) {
	if len(s.events) == 0 {
		return model.Event{}, ErrInputClosed
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

type recordingRenderer struct {
	frames []model.Data
}

func (r *recordingRenderer) Render(d model.Data) {
	r.frames = append(r.frames, d)
}

type recordingSink struct {
	mu   sync.Mutex
	cmds []model.Command
}

func (s *recordingSink) Push(_ context.Context, cmd model.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return nil
}

func keys(ks ...string) []model.Event {
	out := make([]model.Event, len(ks))
	for i, k := range ks {
		out[i] = model.KeyEvent(k)
	}
	return out
}

func newTestLoop(active string, events ...model.Event) (*Loop, *model.State, *recordingSink, *recordingRenderer) {
	state := model.NewState(model.NewData([]model.ServerEntry{{Name: "A"}, {Name: "B"}}, active))
	sink := &recordingSink{}
	renderer := &recordingRenderer{}
	loop := NewLoop(state, sink, &scriptedInput{events: events}, renderer)
	return loop, state, sink, renderer
}

func TestRun_QuitStopsLoop(t *testing.T) {
	loop, _, _, renderer := newTestLoop("", keys("j", "q", "j")...)
	require.NoError(t, loop.Run(context.Background()))
	assert.Len(t, renderer.frames, 2, "one frame per handled event")
}

func TestRun_InputClosedStopsLoop(t *testing.T) {
	loop, _, _, renderer := newTestLoop("")
	require.NoError(t, loop.Run(context.Background()))
	assert.Len(t, renderer.frames, 1)
}

func TestBootstrapStampsSwitchServer(t *testing.T) {
	loop, state, sink, _ := newTestLoop("A")
	require.NoError(t, loop.Bootstrap(context.Background(), "A"))

	require.Len(t, sink.cmds, 1)
	cmd, ok := sink.cmds[0].(model.SwitchServer)
	require.True(t, ok)
	assert.Equal(t, "A", cmd.Server)
	assert.Equal(t, uint64(1), cmd.Generation)
	assert.Equal(t, "A", cmd.Tag().Server)
	assert.NotEmpty(t, cmd.Tag().ID)

	snap, err := state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.True(t, snap.Jobs.Loading)
}

func TestHandle_SwitchServerFromConfig(t *testing.T) {
	loop, state, sink, _ := newTestLoop("")
	ctx := context.Background()
	for _, ev := range keys("j", "enter") {
		_, err := loop.Handle(ctx, ev)
		require.NoError(t, err)
	}

	require.Len(t, sink.cmds, 1)
	assert.Equal(t, "B", sink.cmds[0].Tag().Server, "stamped with the server it switches to")
	snap, _ := state.Snapshot()
	assert.Equal(t, model.PanelJobs, snap.Active)
	assert.Equal(t, "B", snap.ActiveServer)
}

func TestHandle_CommandsKeepEmissionOrder(t *testing.T) {
	loop, state, sink, _ := newTestLoop("A")
	ctx := context.Background()
	require.NoError(t, loop.Bootstrap(ctx, "A"))
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.Jobs.SetJobs([]airflow.Job{{ID: "etl"}})
	}))
	_, err := loop.Handle(ctx, model.KeyEvent("enter"))
	require.NoError(t, err)
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.JobRuns.SetRuns([]airflow.JobRun{{JobID: "etl", RunID: "r1", State: airflow.StateSuccess}})
	}))
	_, err = loop.Handle(ctx, model.KeyEvent("enter"))
	require.NoError(t, err)
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.TaskInstances.SetTaskInstances([]airflow.TaskInstance{
			{JobID: "etl", RunID: "r1", TaskID: "extract", MapIndex: -1, TryNumber: 2, State: airflow.StateSuccess},
		})
	}))
	_, err = loop.Handle(ctx, model.KeyEvent("enter"))
	require.NoError(t, err)

	var names []string
	for _, c := range sink.cmds {
		names = append(names, c.Name()+" "+c.Target())
	}
	assert.Equal(t, []string{
		"SwitchServer A",
		"FetchJobRuns etl",
		"FetchTaskInstances r1",
		"FetchLogs extract#2",
		"FetchLogs extract#1",
	}, names)
	snap, _ := state.Snapshot()
	assert.Equal(t, model.PanelLogs, snap.Active)
}

func TestHandle_TickCounts(t *testing.T) {
	loop, state, sink, _ := newTestLoop("")
	for i := 0; i < 3; i++ {
		quit, err := loop.Handle(context.Background(), model.TickEvent())
		require.NoError(t, err)
		assert.False(t, quit)
	}
	snap, _ := state.Snapshot()
	assert.Equal(t, uint64(3), snap.Ticks)
	assert.Empty(t, sink.cmds)
}

func TestHandle_EscDismissesBanner(t *testing.T) {
	loop, state, _, _ := newTestLoop("A")
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.Banner = model.NewAppError(model.FetchJobs{}, assert.AnError)
	}))

	_, err := loop.Handle(context.Background(), model.KeyEvent("esc"))
	require.NoError(t, err)
	snap, _ := state.Snapshot()
	assert.Nil(t, snap.Banner)
	assert.Equal(t, model.PanelJobs, snap.Active, "dismissing consumes the key")

	_, err = loop.Handle(context.Background(), model.KeyEvent("esc"))
	require.NoError(t, err)
	snap, _ = state.Snapshot()
	assert.Equal(t, model.PanelConfig, snap.Active)
}

func TestHandle_EscClosesFilterBeforeBanner(t *testing.T) {
	loop, state, _, _ := newTestLoop("A")
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.Banner = model.NewAppError(model.FetchJobs{}, assert.AnError)
	}))

	for _, k := range []string{"/", "e", "esc"} {
		_, err := loop.Handle(context.Background(), model.KeyEvent(k))
		require.NoError(t, err)
	}
	snap, _ := state.Snapshot()
	assert.False(t, snap.Jobs.Filter.Editing, "esc closed the filter")
	assert.NotNil(t, snap.Banner, "banner waits for the next esc")

	_, err := loop.Handle(context.Background(), model.KeyEvent("esc"))
	require.NoError(t, err)
	snap, _ = state.Snapshot()
	assert.Nil(t, snap.Banner)
	assert.Equal(t, model.PanelJobs, snap.Active)
}

func TestHandle_PoisonedState(t *testing.T) {
	loop, state, _, _ := newTestLoop("")
	_ = state.Mutate(func(*model.Data) { panic("boom") })
	_, err := loop.Handle(context.Background(), model.KeyEvent("j"))
	assert.ErrorIs(t, err, model.ErrStatePoisoned)
	assert.ErrorIs(t, loop.Run(context.Background()), model.ErrStatePoisoned)
}

// Rendering the same snapshot twice, with no event in between, must give
// the same frame.
func TestRenderIsIdempotent(t *testing.T) {
	loop, state, _, _ := newTestLoop("A")
	require.NoError(t, loop.Bootstrap(context.Background(), "A"))
	require.NoError(t, state.Mutate(func(d *model.Data) {
		d.Jobs.SetJobs([]airflow.Job{{ID: "etl", Tags: []string{"daily"}}, {ID: "report", Paused: true}})
	}))
	snap, err := state.Snapshot()
	require.NoError(t, err)

	term := newTerminal()
	term.Render(snap)
	s := screen{t: term, width: 100, height: 30}
	first := s.View()
	term.Render(snap)
	assert.Equal(t, first, s.View())
	assert.Contains(t, first, "etl")
}

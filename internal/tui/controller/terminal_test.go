package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terakael/flowrs/internal/tui/model"
)

func TestTerminal_KeysAreBufferedInOrder(t *testing.T) {
	term := newTerminal()
	var m tea.Model = screen{t: term}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	for _, want := range []string{"j", "enter", "ctrl+c"} {
		ev, err := term.NextEvent(time.Second)
		require.NoError(t, err)
		assert.Equal(t, model.KeyEvent(want), ev)
	}
}

func TestTerminal_TimeoutYieldsTick(t *testing.T) {
	term := newTerminal()
	start := time.Now()
	ev, err := term.NextEvent(10 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ev.IsTick())
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestTerminal_WakeYieldsTick(t *testing.T) {
	term := newTerminal()
	go func() {
		time.Sleep(10 * time.Millisecond)
		term.Wake()
	}()
	ev, err := term.NextEvent(time.Minute)
	require.NoError(t, err)
	assert.True(t, ev.IsTick())
}

func TestTerminal_CloseDrainsThenFails(t *testing.T) {
	term := newTerminal()
	term.push(model.KeyEvent("q"))
	term.close()

	ev, err := term.NextEvent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "q", ev.Key)
	_, err = term.NextEvent(time.Second)
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestScreen_WindowSize(t *testing.T) {
	term := newTerminal()
	m, _ := screen{t: term}.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	s := m.(screen)
	assert.Equal(t, 80, s.width)
	assert.Equal(t, 24, s.height)
	assert.Equal(t, "Loading...", s.View())
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano -w")
	cmd := editorCommand("/tmp/log.txt")
	assert.Equal(t, []string{"sh", "-c", `nano -w "$1"`, "sh", "/tmp/log.txt"}, cmd.Args)

	t.Setenv("VISUAL", "code --wait")
	cmd = editorCommand("/tmp/log.txt")
	assert.Equal(t, `code --wait "$1"`, cmd.Args[2])

	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")
	cmd = editorCommand("/tmp/log.txt")
	assert.Equal(t, `vi "$1"`, cmd.Args[2])
}

func TestWriteTemp(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	path, err := writeTemp("group/load-attempt-1.log", "hello\n")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "group_load-attempt-1.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestTerminal_EditNeedsProgram(t *testing.T) {
	err := newTerminal().Edit(context.Background(), "x.log", "x")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestScreen_ExecHandsOverTerminal(t *testing.T) {
	term := newTerminal()
	msg := execMsg{cmd: editorCommand("/tmp/x"), done: make(chan error, 1)}
	_, cmd := screen{t: term}.Update(msg)
	assert.NotNil(t, cmd)
}

package controller

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNotRunning is returned by Edit before the program was started.
var ErrNotRunning = errors.New("terminal is not running")

// execMsg asks the program to hand the terminal over to cmd.
type execMsg struct {
	cmd  *exec.Cmd
	done chan error
}

// Edit writes text to a temporary file and opens it in the user's editor.
// The UI is suspended until the editor exits.
func (t *Terminal) Edit(ctx context.Context, name, text string) error {
	if t.program == nil {
		return ErrNotRunning
	}
	path, err := writeTemp(name, text)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	msg := execMsg{cmd: editorCommand(path), done: make(chan error, 1)}
	t.program.Send(msg)
	select {
	case err := <-msg.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeTemp(name, text string) (string, error) {
	name = strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(name)
	f, err := os.CreateTemp("", "flowrs-*-"+name)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// editorCommand runs $VISUAL, then $EDITOR, then vi on path. The variable
// may carry arguments, so it goes through the shell.
func editorCommand(path string) *exec.Cmd {
	editor := "vi"
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			editor = v
			break
		}
	}
	return exec.Command("sh", "-c", editor+` "$1"`, "sh", path)
}

func (m execMsg) run() tea.Cmd {
	return tea.ExecProcess(m.cmd, func(err error) tea.Msg {
		m.done <- err
		return nil
	})
}

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  LogLevel
		known bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"", LevelInfo, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestInitForCLI_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)
	defer Close()

	Info("Test", "hidden %d", 1)
	Warn("Test", "shown %d", 2)
	Error("Test", assert.AnError, "failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "subsystem=Test")
	assert.Contains(t, out, assert.AnError.Error())
}

func TestInitForTUI_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := InitForTUI(LevelDebug, dir, true)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	Debug("Worker", "processing %s", "FetchJobs")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "processing FetchJobs")
	assert.True(t, strings.HasPrefix(filepath.Base(path), LogFilePrefix))
}

func TestInitForTUI_DisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path, err := InitForTUI(LevelDebug, dir, false)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneLogFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, LogFilePrefix+"old.log")
	fresh := filepath.Join(dir, LogFilePrefix+"fresh.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour)))
	require.NoError(t, os.Chtimes(other, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour)))

	removed, err := PruneLogFiles(dir, 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestPruneLogFiles_MissingDir(t *testing.T) {
	removed, err := PruneLogFiles(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

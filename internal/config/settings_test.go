package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	v, err := NewViper(nil)
	require.NoError(t, err)
	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, 7*24*time.Hour, s.LogCacheTTL())
}

func TestLoadSettings_EnvAndFlags(t *testing.T) {
	t.Setenv("FLOWRS_TICK_INTERVAL", "1s")
	t.Setenv("FLOWRS_QUEUE_CAPACITY", "16")
	t.Setenv("FLOWRS_LOG", "1")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Duration("request-timeout", 10*time.Second, "")
	require.NoError(t, fs.Parse([]string{"--request-timeout=3s"}))

	v, err := NewViper(fs)
	require.NoError(t, err)
	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.TickInterval)
	assert.Equal(t, 16, s.QueueCapacity)
	assert.Equal(t, 3*time.Second, s.RequestTimeout)
	assert.True(t, s.Debug)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.TickInterval = 0
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.QueueCapacity = -1
	assert.Error(t, s.Validate())
}

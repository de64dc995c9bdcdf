package cmd

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tc := range tests {
		level, ok := parseLogLevel(tc.in)
		require.Equal(t, tc.level, level, tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
	}
}

func validConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("graph.interval", 10*time.Millisecond)
	viper.Set("graph.samplerate", 48000)
	viper.Set("graph.channels", 2)
	viper.Set("graph.low-water-mark", 100*time.Millisecond)
	viper.Set("graph.max-buffered", 2*time.Second)
	viper.Set("output.volume", 0.7)
	viper.Set("nats.subject-in", "in")
	viper.Set("nats.subject-out", "out")
	viper.Set("opus.max-bandwidth", "wideband")
	viper.Set("opus.bitrate", 24000)
	viper.Set("opus.complexity", 5)
}

func TestCheckParameterValues(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"graph.interval", time.Duration(0)},
		{"graph.samplerate", 44100},
		{"graph.channels", 3},
		{"graph.low-water-mark", time.Millisecond},
		{"graph.max-buffered", 50 * time.Millisecond},
		{"output.volume", 1.5},
		{"nats.subject-out", "in"},
		{"opus.max-bandwidth", "ultraband"},
		{"opus.bitrate", 1000},
		{"opus.complexity", 11},
	}

	validConfig(t)
	require.NoError(t, checkParameterValues())

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			validConfig(t)
			viper.Set(tc.key, tc.value)
			err := checkParameterValues()
			require.Error(t, err)
			perr, ok := err.(*parmError)
			require.True(t, ok)
			require.Equal(t, tc.key, perr.parm)
		})
	}
}

func TestUnlimitedBuffering(t *testing.T) {
	validConfig(t)
	viper.Set("graph.max-buffered", time.Duration(0))
	require.NoError(t, checkParameterValues())
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	require.Contains(t, buf.String(), "streamgraph Version:")
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"", LevelWarn},
		{"off", LevelOff},
		{"ERROR", LevelError},
		{"warning", LevelWarn},
		{" info ", LevelInfo},
		{"debug", LevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestFromFlags(t *testing.T) {
	lvl, err := FromFlags("error", true, true)
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	lvl, err = FromFlags("error", true, false)
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	lvl, err = FromFlags("error", false, false)
	require.NoError(t, err)
	assert.Equal(t, LevelError, lvl)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: LevelWarn, JSON: true, Output: &buf})
	log.Info("hidden")
	log.Warn("persistence failed", zap.String("op", "save"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "persistence failed", entry["msg"])
	assert.Equal(t, "save", entry["op"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewOffIsNop(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: LevelOff, Output: &buf})
	log.Error("nothing")
	assert.Zero(t, buf.Len())
	assert.NotNil(t, OrNop(nil))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "level(9)", Level(9).String())
}

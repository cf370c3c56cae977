package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDebugLevel(t *testing.T) {
	def, levels, err := ParseDebugLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, def)
	assert.Empty(t, levels)

	def, levels, err = ParseDebugLevel("warn, room=debug,ENGN=trace")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, def)
	assert.Equal(t, map[string]slog.Level{"ROOM": slog.LevelDebug, "ENGN": slog.LevelTrace}, levels)

	for _, bad := range []string{"loud", "ROOM=loud", "=debug"} {
		_, _, err := ParseDebugLevel(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	lb, err := NewLogBackend(LogConfig{DebugLevel: "info,ROOM=debug", Output: &buf})
	require.NoError(t, err)

	room := lb.Logger("ROOM")
	srvr := lb.Logger("SRVR")
	assert.Equal(t, slog.LevelDebug, room.Level())
	assert.Equal(t, slog.LevelInfo, srvr.Level())
	assert.Equal(t, room, lb.Logger("ROOM"))

	room.Debugf("dealing hand %d", 7)
	srvr.Debugf("hidden")
	assert.Contains(t, buf.String(), "ROOM: dealing hand 7")
	assert.NotContains(t, buf.String(), "hidden")

	require.NoError(t, lb.SetLevels("error"))
	assert.Equal(t, slog.LevelError, room.Level())
	assert.Error(t, lb.SetLevels("nope"))
}

func TestLogFileRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "pokersrv.log")

	var buf bytes.Buffer
	lb, err := NewLogBackend(LogConfig{LogFile: logFile, MaxLogFiles: 2, Output: &buf})
	require.NoError(t, err)

	lb.Logger("SRVR").Infof("server started")
	require.NoError(t, lb.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SRVR: server started")
	assert.Contains(t, buf.String(), "server started")
}

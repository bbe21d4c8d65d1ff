package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTee(t *testing.T) {
	var console bytes.Buffer
	tee := NewTee(&console)
	path := filepath.Join(t.TempDir(), "run.log")

	_, err := tee.Write([]byte("before\n"))
	require.NoError(t, err)
	require.NoError(t, tee.SetFile(path))
	_, err = tee.Write([]byte("\x1b[2mtime\x1b[0m \x1b[92mINF\x1b[0m hello\n"))
	require.NoError(t, err)
	require.NoError(t, tee.CloseFile())
	_, err = tee.Write([]byte("after\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "time INF hello\n", string(data))
	assert.Contains(t, console.String(), "\x1b[92mINF")
	assert.Contains(t, console.String(), "after")
	assert.NoError(t, tee.CloseFile())
}

func TestTee_WithLogger(t *testing.T) {
	var console bytes.Buffer
	tee := NewTee(&console)
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, tee.SetFile(path))

	New(tee, false).Info("predictions written", "total", 3)
	require.NoError(t, tee.CloseFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "predictions written total=3")
	assert.NotContains(t, string(data), "\x1b[")
}

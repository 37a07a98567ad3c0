package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarning, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("unknown"), "unrecognized levels fall back to INFO")
}

func TestLoggerWritesToFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	log, err := New(path, LevelInfo)
	require.NoError(t, err)

	log.Info("indexed %d documents", 3)
	log.Debug("hidden at info level")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "INFO")
	assert.Contains(t, content, "indexed 3 documents")
	assert.NotContains(t, content, "hidden at info level")
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	log, err := New(path, LevelError)
	require.NoError(t, err)

	log.Warning("dropped")
	log.Error("kept")
	log.Critical("also kept")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Count(strings.TrimSpace(string(data)), "\n") + 1
	assert.Equal(t, 2, lines)
}

func TestDiscardIsSafe(t *testing.T) {
	log := Discard()
	log.Info("goes nowhere")
	log.Error("also nowhere")
	assert.NoError(t, log.Close())
}

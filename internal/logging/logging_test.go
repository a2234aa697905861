package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(Config{Level: "info"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("component", "monitor").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one JSON line: %s", buf.String())
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "monitor", entry["component"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestBuildDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(Config{Level: "debug"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestBuildPretty(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(Config{Pretty: true}, &buf)
	require.NoError(t, err)

	log.Info().Msg("power restored")
	assert.Contains(t, buf.String(), "power restored")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	log, err := New(Config{Output: path})
	require.NoError(t, err)

	log.Warn().Msg("written")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestFileOutputBadPath(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
}

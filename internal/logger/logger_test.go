package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.Debug("hidden")
	log.Info("hello", "user_id", "u1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "u1", record["user_id"])
}

func TestNewDevWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Dev: true, Output: &buf})

	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Dev: true, Level: "warn", Output: &buf})

	log.Info("quiet")
	assert.Empty(t, buf.String())
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, parseLevel("ERROR", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense", slog.LevelInfo))
}

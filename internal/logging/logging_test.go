package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG").Level())
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn").Level())
	assert.Equal(t, slog.LevelError, ParseLevel("error").Level())
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty").Level())
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("Review complete.", "sessionId", "s-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Review complete.", line["msg"])
	assert.Equal(t, "s-1", line["sessionId"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "debug", "text").Debug("page skipped", "page", 2)
	assert.Contains(t, buf.String(), "page=2")
}

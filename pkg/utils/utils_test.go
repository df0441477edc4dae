package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLogLevel("bogus"))
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelWarn, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestDefaultLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelInfo, &buf)

	logger.WithField("taskId", "task_1_000001").Info("progress %d", 50)

	out := buf.String()
	assert.Contains(t, out, "taskId=task_1_000001")
	assert.Contains(t, out, "progress 50")

	// Parent logger is unchanged.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "taskId")
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(25 * time.Hour)
	assert.Equal(t, 25*time.Hour, clock.Since(start))

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"WARN", LevelWarn},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLoggerWithWriter("core", LevelWarn, false, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestConsoleLoggerKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLoggerWithWriter("store", LevelDebug, false, &buf)

	logger.Info("saved session", "platform", "marketinout", "id", "sid-abc")

	output := buf.String()
	assert.Contains(t, output, "[store]")
	assert.Contains(t, output, "saved session")
	assert.Contains(t, output, "platform=marketinout")
	assert.Contains(t, output, "id=sid-abc")
}

func TestConsoleLoggerWithModule(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLoggerWithWriter("service", LevelDebug, false, &buf)

	child := logger.WithModule("health")
	child.Info("check complete")

	assert.Contains(t, buf.String(), "[service/health]")
}

func TestConsoleLoggerSetLevelReachesDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLoggerWithWriter("service", LevelInfo, false, &buf)
	child := logger.WithModule("health").(*ConsoleLogger)

	child.Debug("before")
	logger.SetLevel(LevelDebug)
	child.Debug("after")

	output := buf.String()
	assert.NotContains(t, output, "before")
	assert.Contains(t, output, "after")
}

func TestConsoleLoggerNoColorsInOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLoggerWithWriter("core", LevelDebug, false, &buf)
	logger.Info("plain")

	assert.False(t, strings.Contains(buf.String(), "\033["), "output should not contain ANSI codes")
}

func TestNewLoggerWithFileNilConfig(t *testing.T) {
	logger, err := NewLoggerWithFile("core", LevelInfo, false, nil)
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLoggerWithFileWritesFile(t *testing.T) {
	path := t.TempDir() + "/watchsync.log"
	logger, err := NewLoggerWithFile("core", LevelInfo, true, &FileRotationConfig{Path: path})
	assert.NoError(t, err)

	logger.Info("file sink message")

	// lumberjack creates the file on first write
	assert.FileExists(t, path)
}

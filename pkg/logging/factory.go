package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileRotationConfig contains file logging rotation settings
type FileRotationConfig struct {
	Path       string `yaml:"path"`        // Log file path (required)
	MaxSizeMB  int    `yaml:"max_size_mb"` // Maximum size in megabytes before rotation (default: 100)
	MaxBackups int    `yaml:"max_backups"` // Maximum number of old log files to retain (default: 3)
	MaxAge     int    `yaml:"max_age"`     // Maximum number of days to retain old log files (default: 28)
	Compress   bool   `yaml:"compress"`    // Whether to compress rotated log files
}

// NewLoggerWithFile creates a logger that writes to both console and a
// rotated log file. File output never carries ANSI color codes, so colors
// are disabled entirely when file logging is active.
func NewLoggerWithFile(module string, level Level, useColors bool, fileConfig *FileRotationConfig) (*ConsoleLogger, error) {
	if fileConfig == nil || fileConfig.Path == "" {
		return NewConsoleLogger(module, level, useColors), nil
	}

	maxSizeMB := fileConfig.MaxSizeMB
	if maxSizeMB == 0 {
		maxSizeMB = 100
	}

	maxBackups := fileConfig.MaxBackups
	if maxBackups == 0 {
		maxBackups = 3
	}

	maxAge := fileConfig.MaxAge
	if maxAge == 0 {
		maxAge = 28
	}

	fileWriter := &lumberjack.Logger{
		Filename:   fileConfig.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   fileConfig.Compress,
	}

	multiWriter := io.MultiWriter(os.Stdout, fileWriter)

	return NewConsoleLoggerWithWriter(module, level, false, multiWriter), nil
}

// Package logging provides leveled, module-scoped logging for the
// session service. Components receive a Logger and derive their own
// scope with WithModule.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents log level
type Level int

const (
	// LevelDebug is for debug messages
	LevelDebug Level = iota
	// LevelInfo is for informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
	// LevelFatal is for fatal error messages
	LevelFatal
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown strings default to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
	WithModule(module string) Logger
}

// ConsoleLogger writes formatted log lines to a writer with level filtering.
// Arguments after the message are formatted as key=value pairs. The level
// is shared across all loggers derived with WithModule, so SetLevel on
// any of them takes effect everywhere at once.
type ConsoleLogger struct {
	module    string
	level     *atomic.Int32
	logger    *log.Logger
	useColors bool
}

func newLevel(level Level) *atomic.Int32 {
	var v atomic.Int32
	v.Store(int32(level))
	return &v
}

// NewConsoleLogger creates a logger writing to stdout.
// Colors are applied only when stdout is a terminal.
func NewConsoleLogger(module string, level Level, useColors bool) *ConsoleLogger {
	return &ConsoleLogger{
		module:    module,
		level:     newLevel(level),
		logger:    log.New(os.Stdout, "", log.LstdFlags),
		useColors: useColors && stdoutIsTTY(),
	}
}

// NewConsoleLoggerWithWriter creates a logger writing to an arbitrary writer.
func NewConsoleLoggerWithWriter(module string, level Level, useColors bool, w io.Writer) *ConsoleLogger {
	return &ConsoleLogger{
		module:    module,
		level:     newLevel(level),
		logger:    log.New(w, "", log.LstdFlags),
		useColors: useColors,
	}
}

// SetLevel changes the minimum level, including for loggers already
// derived from this one.
func (l *ConsoleLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func stdoutIsTTY() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

func (l *ConsoleLogger) format(level Level, msg string, args ...interface{}) string {
	message := msg
	if len(args) > 0 {
		var pairs []string
		for i := 0; i+1 < len(args); i += 2 {
			pairs = append(pairs, fmt.Sprintf("%v=%v", args[i], args[i+1]))
		}
		if len(pairs) > 0 {
			message = msg + " " + strings.Join(pairs, " ")
		}
	}

	modulePart := "[" + l.module + "]"
	levelPart := level.String()
	if l.useColors {
		modulePart = colorCyan + modulePart + colorReset
		levelPart = colorizeLevel(level, levelPart)
	}

	return fmt.Sprintf("%s %s: %s", modulePart, levelPart, message)
}

func colorizeLevel(level Level, text string) string {
	switch level {
	case LevelDebug:
		return colorGray + text + colorReset
	case LevelInfo:
		return colorGreen + text + colorReset
	case LevelWarn:
		return colorYellow + text + colorReset
	case LevelError:
		return colorRed + text + colorReset
	case LevelFatal:
		return colorRed + colorBold + text + colorReset
	default:
		return text
	}
}

func (l *ConsoleLogger) log(level Level, msg string, args ...interface{}) {
	if level < Level(l.level.Load()) {
		return
	}

	l.logger.Println(l.format(level, msg, args...))

	if level == LevelFatal {
		os.Exit(1)
	}
}

// Debug logs a debug message
func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message
func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// Fatal logs a fatal error message and exits
func (l *ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.log(LevelFatal, msg, args...)
}

// WithModule creates a new logger with a hierarchical module name.
// Existing scope is kept and the new component appended with "/".
func (l *ConsoleLogger) WithModule(module string) Logger {
	newModule := module
	if l.module != "" {
		newModule = l.module + "/" + module
	}
	// level is shared deliberately: SetLevel reaches derived loggers
	return &ConsoleLogger{
		module:    newModule,
		level:     l.level,
		logger:    l.logger,
		useColors: l.useColors,
	}
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

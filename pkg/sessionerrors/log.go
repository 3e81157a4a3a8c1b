package sessionerrors

import (
	"sync"
	"time"

	"github.com/finbridge/watchsync/pkg/logging"
)

// Sink forwards errors to an external log collector. The production
// deployment wires one; tests and the default setup leave it nil.
type Sink interface {
	Forward(err *SessionError)
}

// Entry is one logged error with its capture time.
type Entry struct {
	Error    *SessionError     `json:"error"`
	Extra    map[string]string `json:"extra,omitempty"`
	LoggedAt time.Time         `json:"loggedAt"`
}

// Stats aggregates the retained error history.
type Stats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"byType"`
	ByPlatform map[string]int `json:"byPlatform"`
	BySeverity map[string]int `json:"bySeverity"`
	LastHour   int            `json:"lastHour"`
}

const defaultLogCapacity = 256

// Log keeps a bounded in-memory ring of recent session errors and
// exposes aggregate statistics over it.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	next     int
	filled   bool
	capacity int

	logger logging.Logger
	sink   Sink
}

// NewLog creates an error log retaining up to capacity entries
// (0 selects the default). sink may be nil.
func NewLog(capacity int, logger logging.Logger, sink Sink) *Log {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &Log{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		logger:   logger.WithModule("errors"),
		sink:     sink,
	}
}

// LogError records a session error, emits it to the structured logger
// at a level matching its severity, and forwards it to the sink.
func (l *Log) LogError(err *SessionError, extra map[string]string) {
	if err == nil {
		return
	}

	entry := Entry{Error: err, Extra: extra, LoggedAt: time.Now()}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.filled = true
	}
	l.mu.Unlock()

	args := []interface{}{
		"type", err.Type,
		"platform", err.Platform,
		"operation", err.Context.Operation,
	}
	switch err.Severity {
	case SeverityInfo:
		l.logger.Info(err.TechnicalMessage, args...)
	case SeverityWarning:
		l.logger.Warn(err.TechnicalMessage, args...)
	default:
		l.logger.Error(err.TechnicalMessage, args...)
	}

	if l.sink != nil {
		l.sink.Forward(err)
	}
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.filled {
		size = l.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (l.next - 1 - i + l.capacity) % l.capacity
		out = append(out, l.entries[idx])
	}
	return out
}

// ErrorStats aggregates counts by type, platform, and severity over the
// retained entries, plus the number logged in the last hour.
func (l *Log) ErrorStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		ByType:     make(map[string]int),
		ByPlatform: make(map[string]int),
		BySeverity: make(map[string]int),
	}

	size := l.next
	if l.filled {
		size = l.capacity
	}

	cutoff := time.Now().Add(-time.Hour)
	for i := 0; i < size; i++ {
		entry := l.entries[i]
		stats.Total++
		stats.ByType[string(entry.Error.Type)]++
		stats.ByPlatform[string(entry.Error.Platform)]++
		stats.BySeverity[string(entry.Error.Severity)]++
		if entry.LoggedAt.After(cutoff) {
			stats.LastHour++
		}
	}

	return stats
}

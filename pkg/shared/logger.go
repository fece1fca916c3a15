package shared

import (
	"context"
	"log/slog"
	"sync"
)

// LogListener observes log records passing through the shared logger.
type LogListener func(level slog.Level, msg string, args []any)

type logEntry struct {
	id int
	fn LogListener
}

// Logger forwards records to an injected slog sink and to registered
// listeners. Once the shared context is aborted, records below Error level
// are dropped.
type Logger struct {
	sink    *slog.Logger
	aborted func() bool

	mu       sync.Mutex
	nextID   int
	perLevel map[slog.Level][]logEntry
	catchAll []logEntry
}

func newLogger(sink *slog.Logger, aborted func() bool) *Logger {
	return &Logger{
		sink:     sink,
		aborted:  aborted,
		perLevel: make(map[slog.Level][]logEntry),
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.logAt(slog.LevelDebug, msg, args) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.logAt(slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.logAt(slog.LevelWarn, msg, args) }

// Error logs at error level. Error records survive an aborted context.
func (l *Logger) Error(msg string, args ...any) { l.logAt(slog.LevelError, msg, args) }

// OnLog subscribes fn to records of exactly level.
func (l *Logger) OnLog(level slog.Level, fn LogListener) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.perLevel[level] = append(l.perLevel[level], logEntry{id: l.nextID, fn: fn})
	return l.nextID
}

// OnAnyLog subscribes fn to records of every level.
func (l *Logger) OnAnyLog(fn LogListener) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.catchAll = append(l.catchAll, logEntry{id: l.nextID, fn: fn})
	return l.nextID
}

// OffLog removes a subscription by its handle.
func (l *Logger) OffLog(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for level, entries := range l.perLevel {
		l.perLevel[level] = removeLogEntry(entries, id)
	}
	l.catchAll = removeLogEntry(l.catchAll, id)
}

func (l *Logger) logAt(level slog.Level, msg string, args []any) {
	if level < slog.LevelError && l.aborted() {
		return
	}

	l.sink.Log(context.Background(), level, msg, args...)

	l.mu.Lock()
	snapshot := make([]logEntry, 0, len(l.perLevel[level])+len(l.catchAll))
	snapshot = append(snapshot, l.perLevel[level]...)
	snapshot = append(snapshot, l.catchAll...)
	l.mu.Unlock()

	for _, e := range snapshot {
		e.fn(level, msg, args)
	}
}

func removeLogEntry(entries []logEntry, id int) []logEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

package mocks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/cliprecorder/pkg/ports"
)

// LogEntry is one recorded log call.
type LogEntry struct {
	Level     ports.LogLevel
	Component string
	Message   string // Formatted, untranslated
}

// Logger is a ports.Logger that records every call.
// Loggers derived with WithComponent share the same record.
type Logger struct {
	component string
	store     *logStore
}

type logStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLogger creates a new recording Logger.
func NewLogger() *Logger {
	return &Logger{store: &logStore{}}
}

func (m *Logger) Debug(msg string, args ...interface{}) { m.record(ports.LevelDebug, msg, args) }
func (m *Logger) Info(msg string, args ...interface{})  { m.record(ports.LevelInfo, msg, args) }
func (m *Logger) Warn(msg string, args ...interface{})  { m.record(ports.LevelWarn, msg, args) }
func (m *Logger) Error(msg string, args ...interface{}) { m.record(ports.LevelError, msg, args) }

func (m *Logger) WithComponent(component string) ports.Logger {
	return &Logger{component: component, store: m.store}
}

func (m *Logger) record(level ports.LogLevel, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(m.store.entries, LogEntry{Level: level, Component: m.component, Message: msg})
}

// Entries returns all recorded entries.
func (m *Logger) Entries() []LogEntry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]LogEntry(nil), m.store.entries...)
}

// Count returns how many entries at level contain substr.
func (m *Logger) Count(level ports.LogLevel, substr string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

var _ ports.Logger = (*Logger)(nil)

package mocks

import (
	"sync"

	"github.com/user/cliprecorder/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	SessionJSON []byte
	Thumbnails  map[int64][]byte
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:    enabled,
		Thumbnails: make(map[int64][]byte),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveSessionJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionJSON = data
	return nil
}

func (m *DebugSink) SaveThumbnail(timeMs int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Thumbnails[timeMs] = data
	return nil
}

// ThumbnailCount returns the number of saved thumbnails.
func (m *DebugSink) ThumbnailCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Thumbnails)
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                 { return false }
func (m *NullSink) SaveSessionJSON(data []byte) error             { return nil }
func (m *NullSink) SaveThumbnail(timeMs int64, data []byte) error { return nil }

var _ ports.DebugSink = (*NullSink)(nil)

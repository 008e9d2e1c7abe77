package mocks

import (
	"sync"

	"github.com/user/cliprecorder/pkg/ports"
)

// RenderBackend is a mock implementation of ports.RenderBackend.
// By default readback requests stay pending until the test completes them,
// oldest first.
type RenderBackend struct {
	AttachFunc          func(target ports.RenderTarget) error
	RequestReadbackFunc func(width, height int) <-chan ports.Readback
	CloseFunc           func() error

	mu       sync.Mutex
	pending  []chan ports.Readback
	sizes    [][2]int
	Targets  []ports.RenderTarget
	Requests int
	Closed   bool
}

func (m *RenderBackend) Attach(target ports.RenderTarget) error {
	m.mu.Lock()
	m.Targets = append(m.Targets, target)
	m.mu.Unlock()
	if m.AttachFunc != nil {
		return m.AttachFunc(target)
	}
	return nil
}

func (m *RenderBackend) RequestReadback(width, height int) <-chan ports.Readback {
	m.mu.Lock()
	m.Requests++
	m.mu.Unlock()
	if m.RequestReadbackFunc != nil {
		return m.RequestReadbackFunc(width, height)
	}
	ch := make(chan ports.Readback, 1)
	m.mu.Lock()
	m.pending = append(m.pending, ch)
	m.sizes = append(m.sizes, [2]int{width, height})
	m.mu.Unlock()
	return ch
}

func (m *RenderBackend) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Pending returns the number of readbacks not yet completed.
func (m *RenderBackend) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// CompleteNext delivers rb to the oldest pending readback.
// It reports false when nothing is pending.
func (m *RenderBackend) CompleteNext(rb ports.Readback) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return false
	}
	ch := m.pending[0]
	m.pending = m.pending[1:]
	m.sizes = m.sizes[1:]
	ch <- rb
	return true
}

// CompleteNextFilled completes the oldest pending readback with a buffer of
// the requested size where every byte is value.
func (m *RenderBackend) CompleteNextFilled(value byte) bool {
	m.mu.Lock()
	if len(m.sizes) == 0 {
		m.mu.Unlock()
		return false
	}
	size := m.sizes[0]
	m.mu.Unlock()

	data := make([]byte, size[0]*size[1]*4)
	for i := range data {
		data[i] = value
	}
	return m.CompleteNext(ports.Readback{Data: data, Width: size[0], Height: size[1]})
}

var _ ports.RenderBackend = (*RenderBackend)(nil)

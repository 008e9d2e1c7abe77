// Package ports defines interfaces for external dependencies.
package ports

import (
	"github.com/user/cliprecorder/pkg/pipeline"
)

// RenderTarget identifies what a render backend draws. For the browser backend
// it is a URL, for the pattern backend a caption.
type RenderTarget string

// Readback is the outcome of one asynchronous readback request.
// Data is handed over to the receiver; the backend must not reuse it.
type Readback struct {
	Data   []byte // Tightly packed RGBA, 4 bytes per pixel
	Width  int
	Height int
	Err    error
}

// RenderBackend abstracts the host rendering loop.
// It only has to deliver a pixel buffer some time after it was asked for one.
type RenderBackend interface {
	// Attach binds capture to a render target, replacing any previous one.
	Attach(target RenderTarget) error

	// RequestReadback blits the current render target into a surface of the
	// given size and starts an asynchronous readback of it.
	// The returned channel receives exactly one Readback and is never closed
	// before that. RequestReadback must not block.
	RequestReadback(width, height int) <-chan Readback

	// Close releases the backend.
	Close() error
}

// FrameSource captures one raw frame per tick from a render backend.
type FrameSource interface {
	// StartRecording prepares buffers and starts issuing readbacks.
	StartRecording() error

	// StopRecording clears the recording flag. Pending readbacks still
	// complete but are ignored.
	StopRecording()

	// Update advances one tick. It never blocks.
	Update()

	// CaptureSourceChanged rebinds the render target being captured.
	CaptureSourceChanged(target RenderTarget) error

	// SaveFrameCaptureToDisk queues the most recently encoded frame for
	// writing to path. It reports whether the write was accepted.
	SaveFrameCaptureToDisk(path string) bool

	// OnFrameCaptured registers a callback fired once per completed capture,
	// after the previous encode job was joined and before the new frame is
	// encoded. Callbacks run on the tick goroutine in registration order.
	OnFrameCaptured(fn func(frame pipeline.RawFrame))
}

// Package capture turns asynchronous render readbacks into a stream of raw
// frames, encoded PPM buffers and queued disk writes.
package capture

import (
	"time"

	"github.com/user/cliprecorder/pkg/diskwriter"
	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
	"github.com/user/cliprecorder/pkg/ppm"
)

// DefaultMaxInFlight is the number of readbacks that may be outstanding.
const DefaultMaxInFlight = 3

// Options configures the frame source.
type Options struct {
	Width          int // Recording resolution
	Height         int
	EncoderWorkers int
	EncoderGrain   int
	WriteQueue     int
	WriteWorkers   int
	MaxInFlight    int
	Clock          func() time.Time
}

type readback struct {
	gen uint64
	ch  <-chan ports.Readback
}

// Source implements ports.FrameSource on top of a render backend.
//
// All methods run on the tick goroutine. The encoder and disk writer run
// their own workers; Source is the only caller of both.
type Source struct {
	backend ports.RenderBackend
	fs      ports.FileSystem
	logger  ports.Logger
	opts    Options

	encoder *ppm.Encoder
	writer  *diskwriter.Writer

	recording bool
	gen       uint64 // Incremented on every start; older readbacks are stale
	pending   []readback
	encoded   bool
	sequence  uint64
	callbacks []func(pipeline.RawFrame)

	dropped int
}

// New creates a frame source. Buffers are allocated on the first StartRecording.
func New(backend ports.RenderBackend, fs ports.FileSystem, logger ports.Logger, opts Options) *Source {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Source{
		backend: backend,
		fs:      fs,
		logger:  logger.WithComponent("capture"),
		opts:    opts,
	}
}

// StartRecording allocates the encoder and writer if needed and starts
// issuing readbacks on the next Update.
func (s *Source) StartRecording() error {
	if s.recording {
		return nil
	}

	if s.encoder == nil {
		s.encoder = ppm.New(s.opts.Width, s.opts.Height, ppm.Options{
			Workers: s.opts.EncoderWorkers,
			Grain:   s.opts.EncoderGrain,
		})
		s.writer = diskwriter.New(s.fs, s.logger, diskwriter.Options{
			Queue:   s.opts.WriteQueue,
			Workers: s.opts.WriteWorkers,
		})
		s.logger.Debug("Allocated %dx%d frame buffers (%d bytes per frame)", s.opts.Width, s.opts.Height, s.encoder.Size())
	}

	s.gen++
	s.recording = true
	s.encoded = false
	s.sequence = 0
	return nil
}

// StopRecording clears the recording flag. Readbacks already in flight
// still complete but are discarded.
func (s *Source) StopRecording() {
	s.recording = false
}

// IsRecording reports whether the source is recording.
func (s *Source) IsRecording() bool {
	return s.recording
}

// Update handles completed readbacks in request order, then asks the
// backend for the next one. It never blocks.
func (s *Source) Update() {
	for len(s.pending) > 0 {
		var (
			rb ports.Readback
			ok bool
		)
		select {
		case rb = <-s.pending[0].ch:
			ok = true
		default:
		}
		if !ok {
			break
		}

		gen := s.pending[0].gen
		s.pending[0] = readback{}
		s.pending = s.pending[1:]
		s.complete(gen, rb)
	}

	if s.recording && len(s.pending) < s.opts.MaxInFlight {
		ch := s.backend.RequestReadback(s.opts.Width, s.opts.Height)
		s.pending = append(s.pending, readback{gen: s.gen, ch: ch})
	}
}

func (s *Source) complete(gen uint64, rb ports.Readback) {
	if !s.recording || gen != s.gen {
		return
	}

	if rb.Err != nil {
		s.dropped++
		s.logger.Warn("Readback failed, dropping frame: %v", rb.Err)
		return
	}
	if len(rb.Data) == 0 {
		s.dropped++
		s.logger.Warn("Readback returned no data, dropping frame")
		return
	}
	if rb.Width != s.opts.Width || rb.Height != s.opts.Height || len(rb.Data) != rb.Width*rb.Height*4 {
		s.dropped++
		s.logger.Warn("Readback returned %dx%d (%d bytes), expected %dx%d, dropping frame",
			rb.Width, rb.Height, len(rb.Data), s.opts.Width, s.opts.Height)
		return
	}

	// The previous frame stays readable until the new one is encoded.
	s.encoder.CompleteJobs()

	frame := pipeline.RawFrame{
		Data:       rb.Data,
		Width:      rb.Width,
		Height:     rb.Height,
		Sequence:   s.sequence,
		CapturedAt: s.opts.Clock(),
	}
	s.sequence++

	for _, fn := range s.callbacks {
		fn(frame)
	}

	if err := s.encoder.Encode(frame); err != nil {
		s.dropped++
		s.logger.Warn("Could not encode frame %d: %v", frame.Sequence, err)
		return
	}
	s.encoded = true
}

// CaptureSourceChanged attaches the backend to a new render target.
func (s *Source) CaptureSourceChanged(target ports.RenderTarget) error {
	if err := s.backend.Attach(target); err != nil {
		return err
	}
	s.logger.Info("Capturing %s", target)
	return nil
}

// SaveFrameCaptureToDisk queues the most recently encoded frame for writing
// to path. It reports false when nothing has been encoded yet or the write
// queue is full.
func (s *Source) SaveFrameCaptureToDisk(path string) bool {
	if !s.encoded {
		return false
	}
	return s.writer.Write(path, s.encoder.Bytes())
}

// OnFrameCaptured registers fn to run for every accepted readback, after the
// previous encode was joined and before the new frame is encoded.
// frame.Data must not be retained after fn returns.
func (s *Source) OnFrameCaptured(fn func(frame pipeline.RawFrame)) {
	s.callbacks = append(s.callbacks, fn)
}

// HasEncodedFrame reports whether a frame is ready to be saved.
func (s *Source) HasEncodedFrame() bool {
	return s.encoded
}

// Fence returns a channel closed once every write queued so far is on disk.
func (s *Source) Fence() <-chan struct{} {
	if s.writer == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.writer.Fence()
}

// Pending returns the number of readbacks in flight.
func (s *Source) Pending() int {
	return len(s.pending)
}

// Dropped returns the number of readbacks discarded because of errors.
func (s *Source) Dropped() int {
	return s.dropped
}

// WriterStats returns the disk writer counters.
func (s *Source) WriterStats() diskwriter.Stats {
	if s.writer == nil {
		return diskwriter.Stats{}
	}
	return s.writer.Stats()
}

// Close stops recording and releases the encoder and writer after pending
// writes finish.
func (s *Source) Close() {
	s.recording = false
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.writer != nil {
		s.writer.Close()
	}
}

var _ ports.FrameSource = (*Source)(nil)

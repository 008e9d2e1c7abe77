// Package ppm encodes raw RGBA frames into binary PPM (P6) images.
//
// The encoder owns a single scratch buffer sized once for the session. Each
// Encode schedules two kinds of work on a persistent worker pool: copying the
// ASCII header into the front of the buffer, and dropping the alpha channel of
// every pixel into the rest of it. The two touch disjoint byte ranges, so the
// only ordering needed is the completion fence exposed by CompleteJobs.
package ppm

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/user/cliprecorder/pkg/pipeline"
)

// DefaultGrain is the number of pixels transformed per task.
const DefaultGrain = 64

// Extension is the file extension used for encoded frames.
const Extension = "ppm"

var (
	// ErrFrameSize is returned when a frame does not match the encoder dimensions.
	ErrFrameSize = errors.New("ppm: frame size does not match encoder")

	// ErrClosed is returned when encoding after Close.
	ErrClosed = errors.New("ppm: encoder closed")
)

// Options configures the encoder worker pool.
type Options struct {
	Workers int // Number of pool workers (default: runtime.NumCPU())
	Grain   int // Pixels per task (default: DefaultGrain)
}

// Header returns the P6 header for the given dimensions.
func Header(width, height int) []byte {
	return []byte(fmt.Sprintf("P6\n%d %d\n255\n", width, height))
}

// Encoder converts RGBA frames to PPM into a reusable scratch buffer.
type Encoder struct {
	width  int
	height int
	header []byte
	buf    []byte
	grain  int

	workers int
	tasks   chan task

	mu     sync.Mutex
	job    *job
	closed bool
}

// job is one Encode call. Workers pull chunk indices from next until all
// chunks are claimed.
type job struct {
	src    []byte
	pixels int
	chunks int64
	next   atomic.Int64
	wg     sync.WaitGroup
	done   chan struct{}
}

type task struct {
	job    *job
	header bool
}

// New creates an encoder for frames of the given size and starts its pool.
func New(width, height int, opts Options) *Encoder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Grain <= 0 {
		opts.Grain = DefaultGrain
	}

	header := Header(width, height)
	e := &Encoder{
		width:   width,
		height:  height,
		header:  header,
		buf:     make([]byte, len(header)+width*height*3),
		grain:   opts.Grain,
		workers: opts.Workers,
		tasks:   make(chan task, opts.Workers+1),
	}

	for w := 0; w < e.workers; w++ {
		go e.worker()
	}

	return e
}

// Size returns the byte length of an encoded frame.
func (e *Encoder) Size() int {
	return len(e.buf)
}

// HeaderLen returns the length of the P6 header.
func (e *Encoder) HeaderLen() int {
	return len(e.header)
}

// Encode starts encoding frame into the scratch buffer and returns without
// waiting. A job still running from a previous call is joined first, so the
// buffer is never written by two jobs at once. The caller must keep
// frame.Data untouched until the job completes.
func (e *Encoder) Encode(frame pipeline.RawFrame) error {
	pixels := e.width * e.height
	if frame.Width != e.width || frame.Height != e.height || len(frame.Data) != pixels*4 {
		return fmt.Errorf("%w: got %dx%d (%d bytes), want %dx%d",
			ErrFrameSize, frame.Width, frame.Height, len(frame.Data), e.width, e.height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.job != nil {
		<-e.job.done
	}

	j := &job{
		src:    frame.Data,
		pixels: pixels,
		chunks: int64((pixels + e.grain - 1) / e.grain),
		done:   make(chan struct{}),
	}

	workers := e.workers
	if int64(workers) > j.chunks {
		workers = int(j.chunks)
	}

	j.wg.Add(1 + workers)
	e.tasks <- task{job: j, header: true}
	for w := 0; w < workers; w++ {
		e.tasks <- task{job: j}
	}

	go func() {
		j.wg.Wait()
		close(j.done)
	}()

	e.job = j
	return nil
}

// Done returns a channel closed when the current job completes.
// It is already closed when nothing has been encoded.
func (e *Encoder) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.job.done
}

// CompleteJobs blocks until the current job has finished. Calling it again
// after the job finished returns immediately.
func (e *Encoder) CompleteJobs() {
	<-e.Done()
}

// CopyTo joins the current job and copies the encoded frame into dst.
// It returns the number of bytes copied.
func (e *Encoder) CopyTo(dst []byte) int {
	e.CompleteJobs()
	return copy(dst, e.buf)
}

// Bytes joins the current job and returns the scratch buffer.
// The slice is only valid until the next Encode.
func (e *Encoder) Bytes() []byte {
	e.CompleteJobs()
	return e.buf
}

// Close joins the current job and stops the worker pool.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.job != nil {
		<-e.job.done
	}
	e.closed = true
	close(e.tasks)
}

func (e *Encoder) worker() {
	for t := range e.tasks {
		if t.header {
			copy(e.buf[:len(e.header)], e.header)
		} else {
			e.transform(t.job)
		}
		t.job.wg.Done()
	}
}

// transform claims chunks until none are left.
func (e *Encoder) transform(j *job) {
	dst := e.buf[len(e.header):]
	for {
		c := j.next.Add(1) - 1
		if c >= j.chunks {
			return
		}
		start := int(c) * e.grain
		end := start + e.grain
		if end > j.pixels {
			end = j.pixels
		}
		for i := start; i < end; i++ {
			s := i * 4
			d := i * 3
			dst[d] = j.src[s]
			dst[d+1] = j.src[s+1]
			dst[d+2] = j.src[s+2]
		}
	}
}

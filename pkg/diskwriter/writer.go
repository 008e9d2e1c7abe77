// Package diskwriter writes encoded frames to disk off the tick goroutine.
package diskwriter

import (
	"sync"
	"sync/atomic"

	"github.com/user/cliprecorder/pkg/ports"
)

// Defaults for Options.
const (
	DefaultQueue   = 8
	DefaultWorkers = 2
)

// Options configures the writer.
type Options struct {
	Queue   int // Pending writes accepted before Write starts dropping
	Workers int // Concurrent file writes
}

// Stats counts what happened to accepted and rejected writes.
type Stats struct {
	Written int64
	Dropped int64
	Failed  int64
}

// Writer accepts byte buffers and persists them in the background.
// Write never blocks: when the queue is full the frame is dropped.
type Writer struct {
	fs     ports.FileSystem
	logger ports.Logger
	queue  chan request
	pool   sync.Pool
	wg     sync.WaitGroup

	mu        sync.Mutex
	gen       *generation
	lastFence chan struct{}
	closed    bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

type request struct {
	path string
	buf  *[]byte
	gen  *generation
}

// generation groups the writes accepted between two fences.
type generation struct {
	wg sync.WaitGroup
}

// New creates a writer and starts its workers.
func New(fs ports.FileSystem, logger ports.Logger, opts Options) *Writer {
	if opts.Queue <= 0 {
		opts.Queue = DefaultQueue
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	w := &Writer{
		fs:     fs,
		logger: logger.WithComponent("writer"),
		queue:  make(chan request, opts.Queue),
		gen:    &generation{},
	}

	w.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go w.worker()
	}

	return w
}

// Write copies data and queues it for writing to path.
// It reports false when the writer is closed or the queue is full.
func (w *Writer) Write(path string, data []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}

	buf := w.buffer(len(data))
	copy(*buf, data)

	gen := w.gen
	gen.wg.Add(1)

	select {
	case w.queue <- request{path: path, buf: buf, gen: gen}:
		return true
	default:
		gen.wg.Done()
		w.pool.Put(buf)
		w.dropped.Add(1)
		w.logger.Warn("Write queue full, dropping %s", path)
		return false
	}
}

// Fence returns a channel closed once every write accepted before the call
// has finished, successfully or not.
func (w *Writer) Fence() <-chan struct{} {
	w.mu.Lock()
	old := w.gen
	prev := w.lastFence
	done := make(chan struct{})
	w.gen = &generation{}
	w.lastFence = done
	w.mu.Unlock()

	go func() {
		old.wg.Wait()
		if prev != nil {
			<-prev
		}
		close(done)
	}()

	return done
}

// Flush blocks until every accepted write has finished.
func (w *Writer) Flush() {
	<-w.Fence()
}

// Stats returns the write counters.
func (w *Writer) Stats() Stats {
	return Stats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
	}
}

// Close finishes the queued writes and stops the workers.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for req := range w.queue {
		if err := w.fs.WriteFile(req.path, *req.buf); err != nil {
			w.failed.Add(1)
			w.logger.Warn("Failed to write %s: %v", req.path, err)
		} else {
			w.written.Add(1)
		}
		w.pool.Put(req.buf)
		req.gen.wg.Done()
	}
}

// buffer returns a pooled buffer of length n.
func (w *Writer) buffer(n int) *[]byte {
	if v := w.pool.Get(); v != nil {
		buf := v.(*[]byte)
		if cap(*buf) >= n {
			*buf = (*buf)[:n]
			return buf
		}
	}
	buf := make([]byte, n)
	return &buf
}

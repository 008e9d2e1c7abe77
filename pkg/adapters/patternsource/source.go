// Package patternsource renders a synthetic test pattern. It needs no browser
// and is used for smoke tests and for checking an encoder setup end to end.
package patternsource

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/user/cliprecorder/pkg/ports"
)

// ErrClosed is delivered for readbacks requested after Close.
var ErrClosed = errors.New("patternsource: closed")

// Bars are the colors of the vertical test bars, left to right.
var Bars = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// Options configures the pattern.
type Options struct {
	Clock func() time.Time
}

// Source implements ports.RenderBackend by drawing one pattern frame per
// readback: color bars, a sweep line that moves with every frame, the
// attached caption and a frame counter.
type Source struct {
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options

	mu      sync.Mutex
	caption ports.RenderTarget
	frame   int
	started time.Time
	closed  bool
	wg      sync.WaitGroup
}

// New creates a pattern source.
func New(renderer ports.Renderer, logger ports.Logger, opts Options) *Source {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Source{
		renderer: renderer,
		logger:   logger.WithComponent("pattern"),
		opts:     opts,
		started:  opts.Clock(),
	}
}

// Attach sets the caption drawn on every frame.
func (s *Source) Attach(target ports.RenderTarget) error {
	s.mu.Lock()
	s.caption = target
	s.mu.Unlock()
	s.logger.Debug("Pattern caption set to %s", target)
	return nil
}

// RequestReadback draws the next frame at width x height in the background.
func (s *Source) RequestReadback(width, height int) <-chan ports.Readback {
	ch := make(chan ports.Readback, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ch <- ports.Readback{Err: ErrClosed}
		return ch
	}
	frame := s.frame
	s.frame++
	caption := s.caption
	elapsed := s.opts.Clock().Sub(s.started)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ch <- s.draw(frame, caption, elapsed, width, height)
	}()
	return ch
}

func (s *Source) draw(frame int, caption ports.RenderTarget, elapsed time.Duration, width, height int) ports.Readback {
	if width <= 0 || height <= 0 {
		return ports.Readback{Err: fmt.Errorf("patternsource: invalid size %dx%d", width, height)}
	}

	canvas := s.renderer.CreateCanvas(width, height, color.RGBA{16, 16, 16, 255})

	barsHeight := height * 2 / 3
	for i, c := range Bars {
		x0 := i * width / len(Bars)
		x1 := (i + 1) * width / len(Bars)
		canvas.DrawRect(x0, 0, x1-x0, barsHeight, c)
	}

	sweep := (frame * 4) % width
	canvas.DrawLine(sweep, 0, sweep, height, color.White, 2)

	style := ports.TextStyle{FontSize: 13, Color: color.White, Align: ports.AlignLeft}
	line := height - (height-barsHeight)/2
	if caption != "" {
		canvas.DrawText(string(caption), 8, line-8, style)
	}
	canvas.DrawText(fmt.Sprintf("#%d  %.3fs", frame, elapsed.Seconds()), 8, line+8, style)

	return ports.Readback{
		Data:   s.renderer.Rasterize(canvas.ToImage(), width, height),
		Width:  width,
		Height: height,
	}
}

// Frames returns the number of frames drawn or being drawn.
func (s *Source) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Close waits for frames being drawn and fails later readbacks.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

var _ ports.RenderBackend = (*Source)(nil)

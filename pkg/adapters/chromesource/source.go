// Package chromesource renders capture targets in headless Chrome and reads
// frames back from its screencast.
package chromesource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/user/cliprecorder/pkg/ports"
)

// Defaults for Options.
const (
	DefaultQuality         = 80
	DefaultNavigateTimeout = 30 * time.Second
)

var (
	// ErrChromeNotFound is returned when no Chrome executable can be located.
	ErrChromeNotFound = errors.New("chromesource: chrome not found, install Chrome/Chromium or set CHROME_PATH")
	// ErrNoFrame is delivered when a readback is requested before the first screencast frame.
	ErrNoFrame = errors.New("chromesource: no screencast frame yet")
	// ErrNotLaunched is returned when the browser is used before Launch.
	ErrNotLaunched = errors.New("chromesource: browser not launched")
)

// Options configures the browser.
type Options struct {
	ChromePath        string
	Headless          bool
	Width             int // Viewport in CSS pixels
	Height            int
	Quality           int // Screencast JPEG quality
	UserAgent         string
	IgnoreHTTPSErrors bool
	NavigateTimeout   time.Duration
}

// Source implements ports.RenderBackend with a Chrome screencast. The most
// recent screencast frame stands for the current contents of the render
// target; readbacks decode and scale it off the caller's goroutine.
type Source struct {
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	latest []byte // JPEG
	frames int
}

// New creates a source. Call Launch before use.
func New(renderer ports.Renderer, logger ports.Logger, opts Options) *Source {
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}
	return &Source{
		renderer: renderer,
		logger:   logger.WithComponent("browser"),
		opts:     opts,
	}
}

// Launch starts Chrome, sizes the viewport and starts the screencast.
func (s *Source) Launch(ctx context.Context) error {
	chromePath := ResolveChromePath(s.opts.ChromePath)
	if chromePath == "" {
		return ErrChromeNotFound
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(chromePath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	}
	if s.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if s.opts.Width > 0 && s.opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(s.opts.Width, s.opts.Height))
	}
	if s.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(s.opts.UserAgent))
	}
	if s.opts.IgnoreHTTPSErrors {
		allocOpts = append(allocOpts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true))
	}

	if s.opts.Headless {
		s.logger.Info("Launching browser in headless mode")
	} else {
		s.logger.Info("Launching browser in visible mode")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	s.allocCancel = allocCancel
	s.ctx, s.cancel = chromedp.NewContext(allocCtx)

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventScreencastFrame); ok {
			s.onScreencastFrame(e)
		}
	})

	actions := []chromedp.Action{}
	if s.opts.Width > 0 && s.opts.Height > 0 {
		actions = append(actions,
			emulation.SetDeviceMetricsOverride(int64(s.opts.Width), int64(s.opts.Height), 1, false))
	}
	actions = append(actions,
		page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(int64(s.opts.Quality)).
			WithEveryNthFrame(1))

	if err := chromedp.Run(s.ctx, actions...); err != nil {
		s.Close()
		return fmt.Errorf("start screencast: %w", err)
	}
	s.logger.Info("Starting screencast")
	return nil
}

func (s *Source) onScreencastFrame(e *page.EventScreencastFrame) {
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err == nil {
		s.store(data)
	}

	// Chrome stops sending frames until the previous one is acknowledged
	go chromedp.Run(s.ctx, page.ScreencastFrameAck(e.SessionID))
}

func (s *Source) store(jpeg []byte) {
	s.mu.Lock()
	s.latest = jpeg
	s.frames++
	s.mu.Unlock()
}

// Frames returns the number of screencast frames received.
func (s *Source) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Attach navigates the browser to target, which must be a URL.
func (s *Source) Attach(target ports.RenderTarget) error {
	if s.ctx == nil {
		return ErrNotLaunched
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.NavigateTimeout)
	defer cancel()

	s.logger.Info("Navigating to %s", target)
	if err := chromedp.Run(ctx, chromedp.Navigate(string(target))); err != nil {
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	return nil
}

// RequestReadback decodes the latest screencast frame and scales it to
// width x height in the background.
func (s *Source) RequestReadback(width, height int) <-chan ports.Readback {
	ch := make(chan ports.Readback, 1)

	s.mu.Lock()
	jpeg := s.latest
	s.mu.Unlock()

	go func() {
		ch <- s.readback(jpeg, width, height)
	}()
	return ch
}

func (s *Source) readback(jpeg []byte, width, height int) ports.Readback {
	if jpeg == nil {
		return ports.Readback{Err: ErrNoFrame}
	}

	img, err := s.renderer.DecodeImage(jpeg, ports.FormatJPEG)
	if err != nil {
		return ports.Readback{Err: fmt.Errorf("decode screencast frame: %w", err)}
	}
	return ports.Readback{
		Data:   s.renderer.Rasterize(img, width, height),
		Width:  width,
		Height: height,
	}
}

// Close stops the screencast and shuts Chrome down.
func (s *Source) Close() error {
	if s.ctx != nil {
		stopCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		chromedp.Run(stopCtx, page.StopScreencast())
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.logger.Info("Browser closed")
	return nil
}

var _ ports.RenderBackend = (*Source)(nil)

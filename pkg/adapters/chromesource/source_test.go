package chromesource

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/user/cliprecorder/pkg/adapters/ggrenderer"
	"github.com/user/cliprecorder/pkg/mocks"
	"github.com/user/cliprecorder/pkg/ports"
)

func solidJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	data, err := ggrenderer.New().EncodeImage(img, ports.FormatJPEG, 95)
	if err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return data
}

func receive(t *testing.T, ch <-chan ports.Readback) ports.Readback {
	t.Helper()
	select {
	case rb := <-ch:
		return rb
	case <-time.After(2 * time.Second):
		t.Fatal("readback never completed")
		return ports.Readback{}
	}
}

func TestSource_ReadbackBeforeFirstFrame(t *testing.T) {
	s := New(ggrenderer.New(), mocks.NewLogger(), Options{})

	rb := receive(t, s.RequestReadback(8, 4))
	if !errors.Is(rb.Err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", rb.Err)
	}
}

func TestSource_ReadbackScalesLatestFrame(t *testing.T) {
	s := New(ggrenderer.New(), mocks.NewLogger(), Options{})
	s.store(solidJPEG(t, 64, 32, color.RGBA{0, 0, 255, 255}))
	s.store(solidJPEG(t, 64, 32, color.RGBA{255, 0, 0, 255}))

	rb := receive(t, s.RequestReadback(16, 8))
	if rb.Err != nil {
		t.Fatalf("unexpected error: %v", rb.Err)
	}
	if rb.Width != 16 || rb.Height != 8 || len(rb.Data) != 16*8*4 {
		t.Fatalf("expected 16x8 RGBA, got %dx%d with %d bytes", rb.Width, rb.Height, len(rb.Data))
	}

	// JPEG is lossy; the middle pixel should still be clearly red
	i := (4*16 + 8) * 4
	r, g, b := rb.Data[i], rb.Data[i+1], rb.Data[i+2]
	if r < 200 || g > 60 || b > 60 {
		t.Errorf("expected the latest (red) frame, got rgb(%d, %d, %d)", r, g, b)
	}
	if s.Frames() != 2 {
		t.Errorf("expected 2 frames received, got %d", s.Frames())
	}
}

func TestSource_ReadbackDecodeError(t *testing.T) {
	s := New(ggrenderer.New(), mocks.NewLogger(), Options{})
	s.store([]byte("not a jpeg"))

	if rb := receive(t, s.RequestReadback(4, 4)); rb.Err == nil {
		t.Error("expected a decode error")
	}
}

func TestSource_AttachBeforeLaunch(t *testing.T) {
	s := New(ggrenderer.New(), mocks.NewLogger(), Options{})

	if err := s.Attach("https://example.com"); !errors.Is(err, ErrNotLaunched) {
		t.Errorf("expected ErrNotLaunched, got %v", err)
	}
}

func TestSource_LaunchWithoutChrome(t *testing.T) {
	t.Setenv("CHROME_PATH", "")
	t.Setenv("PATH", t.TempDir())
	if ResolveChromePath("") != "" {
		t.Skip("a system browser is installed at a fixed location")
	}

	s := New(ggrenderer.New(), mocks.NewLogger(), Options{Headless: true})
	if err := s.Launch(context.Background()); !errors.Is(err, ErrChromeNotFound) {
		t.Errorf("expected ErrChromeNotFound, got %v", err)
	}
}

func TestSource_Screencast(t *testing.T) {
	chromePath := ResolveChromePath("")
	if chromePath == "" {
		t.Skip("Chrome not installed, skipping screencast test")
	}

	s := New(ggrenderer.New(), mocks.NewLogger(), Options{
		ChromePath: chromePath,
		Headless:   true,
		Width:      320,
		Height:     240,
	})
	if err := s.Launch(context.Background()); err != nil {
		t.Fatalf("failed to launch: %v", err)
	}
	defer s.Close()

	if err := s.Attach("data:text/html,<body style='background:red'></body>"); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for s.Frames() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no screencast frame received")
		}
		time.Sleep(50 * time.Millisecond)
	}

	rb := receive(t, s.RequestReadback(160, 120))
	if rb.Err != nil {
		t.Fatalf("readback failed: %v", rb.Err)
	}
	if len(rb.Data) != 160*120*4 {
		t.Errorf("expected %d bytes, got %d", 160*120*4, len(rb.Data))
	}
}

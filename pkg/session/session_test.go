package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/cliprecorder/pkg/adapters/osfilesystem"
	"github.com/user/cliprecorder/pkg/mocks"
	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
	"github.com/user/cliprecorder/pkg/upload"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	s        *Session
	backend  *mocks.RenderBackend
	fs       *mocks.FileSystem
	encoder  *mocks.ClipEncoder
	uploader *mocks.VideoUploader
	sink     *mocks.DebugSink
	logger   *mocks.Logger
	clock    *fakeClock
}

// testConfig records 4x2 frames at 2 fps into one-second clips, so a clip is
// full after two frames and frames are due every 500ms.
func testConfig() Config {
	return Config{
		Width:       4,
		Height:      2,
		FrameRate:   2,
		ClipSeconds: 1,
		FrameExt:    "ppm",
		RootDir:     "rec",
		TempFolder:  "TempVideos",
		APIKey:      "key",
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		backend:  &mocks.RenderBackend{},
		fs:       mocks.NewFileSystem(),
		encoder:  &mocks.ClipEncoder{},
		uploader: &mocks.VideoUploader{},
		sink:     mocks.NewDebugSink(true),
		logger:   mocks.NewLogger(),
		clock:    &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	h.s = New(cfg, Deps{
		Backend:  h.backend,
		FS:       h.fs,
		Encoder:  h.encoder,
		Uploader: h.uploader,
		Renderer: &mocks.Renderer{},
		Sink:     h.sink,
		Logger:   h.logger,
		Clock:    h.clock.Now,
	})
	t.Cleanup(h.s.Close)
	return h
}

// step completes the oldest readback 500ms later and ticks once.
func (h *harness) step(t *testing.T, value byte) {
	t.Helper()
	h.clock.Advance(500 * time.Millisecond)
	if !h.backend.CompleteNextFilled(value) {
		t.Fatal("no readback pending")
	}
	h.s.Update()
}

// tickUntil ticks until cond holds or a second passes.
func (h *harness) tickUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
		h.s.Update()
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.s.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	h.s.Update()
}

func TestSession_HandsOffFullClip(t *testing.T) {
	h := newHarness(t, testConfig())
	h.start(t)

	h.step(t, 1) // first capture, nothing encoded yet
	h.step(t, 2) // writes frame 1 as frame0
	h.step(t, 3) // writes frame 2 as frame1, clip full

	h.tickUntil(t, "launch", func() bool { return len(h.encoder.Launched()) == 1 })

	job := h.encoder.Launched()[0]
	clip := job.Clip()
	if clip.Index != 0 || clip.Frames != 2 {
		t.Errorf("expected clip 0 with 2 frames, got clip %d with %d", clip.Index, clip.Frames)
	}
	if clip.StartMs != 0 || clip.EndMs != 1000 {
		t.Errorf("expected window [0, 1000), got [%d, %d)", clip.StartMs, clip.EndMs)
	}
	if want := filepath.Join("rec", "TempVideos", "20260101_000000"); clip.Dir != want {
		t.Errorf("expected clip dir %s, got %s", want, clip.Dir)
	}

	for i, value := range []byte{1, 2} {
		data, ok := h.fs.GetFile(clip.FramePath(i))
		if !ok {
			t.Fatalf("frame%d not written", i)
		}
		if !strings.HasPrefix(string(data), "P6\n4 2\n255\n") {
			t.Errorf("frame%d is not a PPM", i)
		}
		if data[len(data)-1] != value {
			t.Errorf("frame%d: expected pixels of capture %d, got %d", i, value, data[len(data)-1])
		}
	}

	// The next clip opened a fresh directory
	h.step(t, 4)
	next := filepath.Join("rec", "TempVideos", "20260101_000001", "frame0.ppm")
	h.tickUntil(t, "next clip frame", func() bool {
		_, ok := h.fs.GetFile(next)
		return ok
	})

	if len(h.uploader.VideoCalls()) != 0 {
		t.Fatal("nothing must be uploaded before the encoder exits")
	}

	job.Exit(0, nil)
	h.s.Update()

	calls := h.uploader.VideoCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 video upload, got %d", len(calls))
	}
	if calls[0].Path != clip.OutputPath() || calls[0].StartMs != 0 || calls[0].EndMs != 1000 || calls[0].APIKey != "key" {
		t.Errorf("unexpected upload %+v", calls[0])
	}
	if _, ok := h.fs.GetFile(clip.FramePath(0)); ok {
		t.Error("frames should be deleted after the encoder exits")
	}
	if h.fs.HasDir(clip.Dir) {
		t.Error("clip directory should be removed after a successful upload")
	}
}

func TestSession_FramePacing(t *testing.T) {
	h := newHarness(t, testConfig())
	h.start(t)

	h.step(t, 1)
	h.step(t, 2)

	// A slow render stands for two frames, both copies of capture 2
	h.clock.Advance(500 * time.Millisecond)
	h.step(t, 3)

	h.tickUntil(t, "launch", func() bool { return len(h.encoder.Launched()) == 1 })

	next := filepath.Join("rec", "TempVideos", "20260101_000002", "frame0.ppm")
	h.tickUntil(t, "duplicate frame", func() bool {
		_, ok := h.fs.GetFile(next)
		return ok
	})

	clip := h.encoder.Launched()[0].Clip()
	paths := []string{clip.FramePath(0), clip.FramePath(1), next}
	for i, want := range []byte{1, 2, 2} {
		data, _ := h.fs.GetFile(paths[i])
		if len(data) == 0 || data[len(data)-1] != want {
			t.Errorf("%s: expected pixels of capture %d", paths[i], want)
		}
	}
	if got := h.s.Stats().FramesWritten; got != 3 {
		t.Errorf("expected 3 frames written, got %d", got)
	}
}

func TestSession_StopAbandonsTail(t *testing.T) {
	h := newHarness(t, testConfig())
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)

	h.s.StopRecording()
	h.s.Update()

	if h.s.IsRecording() {
		t.Error("expected recording to be stopped")
	}
	if len(h.encoder.Launched()) != 0 {
		t.Error("partial clip must not be encoded")
	}
	if got := h.s.Stats().TailsAbandoned; got != 1 {
		t.Errorf("expected 1 abandoned tail, got %d", got)
	}
}

func TestSession_FinalizeOnStop(t *testing.T) {
	cfg := testConfig()
	cfg.FinalizeOnStop = true
	h := newHarness(t, cfg)
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)

	h.clock.Advance(200 * time.Millisecond)
	h.s.StopRecording()
	h.tickUntil(t, "tail launch", func() bool { return len(h.encoder.Launched()) == 1 })

	clip := h.encoder.Launched()[0].Clip()
	if clip.Frames != 1 {
		t.Errorf("expected 1 frame in tail, got %d", clip.Frames)
	}
	if clip.StartMs != 0 || clip.EndMs != 1200 {
		t.Errorf("expected window [0, 1200), got [%d, %d)", clip.StartMs, clip.EndMs)
	}
}

func TestSession_IgnoresCompletionsAfterStop(t *testing.T) {
	h := newHarness(t, testConfig())
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)

	h.s.StopRecording()
	requests := h.backend.Requests

	h.step(t, 3)
	h.s.Update()

	if got := h.s.Stats().FramesWritten; got != 1 {
		t.Errorf("completions after stop must not write frames, got %d written", got)
	}
	if h.backend.Requests != requests {
		t.Error("no readbacks should be requested after stop")
	}
}

func TestSession_StartResetsTempDir(t *testing.T) {
	h := newHarness(t, testConfig())
	temp := filepath.Join("rec", "TempVideos")
	stale := filepath.Join(temp, "20250101_000000", "frame0.ppm")
	h.fs.MkdirAll(temp)
	h.fs.WriteFile(stale, []byte("old"))

	h.start(t)

	if _, ok := h.fs.GetFile(stale); ok {
		t.Error("stale frames should be removed on start")
	}
	if !h.fs.HasDir(temp) {
		t.Error("temp folder should be recreated")
	}
}

func TestSession_StartKeepsFilesOutsideTempDir(t *testing.T) {
	tests := []struct {
		name   string
		folder string
	}{
		{"root itself", "."},
		{"root after clean", "clips/.."},
		{"parent", ".."},
		{"filesystem root", "/"},
		{"climbs out", "../other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			root := filepath.Join(parent, "rec")
			if err := os.MkdirAll(root, 0755); err != nil {
				t.Fatal(err)
			}
			keep := []string{filepath.Join(root, "precious.txt"), filepath.Join(parent, "precious.txt")}
			for _, path := range keep {
				if err := os.WriteFile(path, []byte("keep"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			cfg := testConfig()
			cfg.RootDir = root
			cfg.TempFolder = tt.folder
			s := New(cfg, Deps{
				Backend:  &mocks.RenderBackend{},
				FS:       osfilesystem.New(),
				Encoder:  &mocks.ClipEncoder{},
				Uploader: &mocks.VideoUploader{},
				Logger:   mocks.NewLogger(),
			})
			defer s.Close()

			if err := s.StartRecording(); !errors.Is(err, ErrUnsafeTempFolder) {
				t.Errorf("expected ErrUnsafeTempFolder, got %v", err)
			}
			if s.IsRecording() {
				t.Error("recording must not start")
			}
			for _, path := range keep {
				if _, err := os.Stat(path); err != nil {
					t.Errorf("%s should survive StartRecording: %v", path, err)
				}
			}
		})
	}
}

func TestSession_StartWithNestedTempFolder(t *testing.T) {
	root := t.TempDir()
	sibling := filepath.Join(root, "precious.txt")
	if err := os.WriteFile(sibling, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.RootDir = root
	cfg.TempFolder = filepath.Join("cache", "TempVideos")
	s := New(cfg, Deps{
		Backend:  &mocks.RenderBackend{},
		FS:       osfilesystem.New(),
		Encoder:  &mocks.ClipEncoder{},
		Uploader: &mocks.VideoUploader{},
		Logger:   mocks.NewLogger(),
	})
	defer s.Close()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Errorf("sibling file should survive StartRecording: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cache", "TempVideos")); err != nil {
		t.Errorf("expected temp folder to be created: %v", err)
	}
}

func TestCheckTempFolder(t *testing.T) {
	tests := []struct {
		folder string
		ok     bool
	}{
		{"TempVideos", true},
		{"cache/TempVideos", true},
		{"./TempVideos", true},
		{"", false},
		{".", false},
		{"./", false},
		{"a/..", false},
		{"..", false},
		{"../TempVideos", false},
		{"a/../../b", false},
		{"/", false},
		{"/tmp/clips", false},
	}

	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			err := CheckTempFolder(tt.folder)
			if tt.ok && err != nil {
				t.Errorf("expected %q to be accepted, got %v", tt.folder, err)
			}
			if !tt.ok && !errors.Is(err, ErrUnsafeTempFolder) {
				t.Errorf("expected %q to be rejected, got %v", tt.folder, err)
			}
		})
	}
}

func TestSession_SessionIDAndObservers(t *testing.T) {
	h := newHarness(t, testConfig())

	var events []string
	h.s.OnRecordingStarted(func(id string) { events = append(events, "start1 "+id) })
	h.s.OnRecordingStarted(func(id string) { events = append(events, "start2 "+id) })
	h.s.OnRecordingStopped(func(id string) { events = append(events, "stop "+id) })

	h.start(t)
	first := h.s.SessionID()
	if !strings.HasPrefix(first, "V1") || len(first) != 2+36 {
		t.Errorf("unexpected session id %q", first)
	}
	h.s.StopRecording()

	h.start(t)
	if h.s.SessionID() == first {
		t.Error("every recording should get a new session id")
	}

	want := []string{"start1 " + first, "start2 " + first, "stop " + first}
	if len(events) < len(want) {
		t.Fatalf("expected at least %d events, got %v", len(want), events)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d: expected %q, got %q", i, w, events[i])
		}
	}
}

func TestSession_Thumbnails(t *testing.T) {
	cfg := testConfig()
	cfg.ThumbnailInterval = time.Second
	h := newHarness(t, cfg)
	h.start(t)

	h.step(t, 1) // 500ms, first thumbnail
	h.step(t, 2) // 1000ms, second thumbnail
	h.step(t, 3) // 1500ms
	h.s.Close()

	calls := h.uploader.ThumbnailCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 thumbnails, got %d", len(calls))
	}
	times := map[int64]bool{}
	for _, c := range calls {
		times[c.TimeMs] = true
		if c.APIKey != "key" {
			t.Errorf("expected api key on thumbnail, got %q", c.APIKey)
		}
	}
	if !times[500] || !times[1000] {
		t.Errorf("expected thumbnails at 500 and 1000 ms, got %v", times)
	}
	if h.sink.ThumbnailCount() != 2 {
		t.Errorf("expected 2 thumbnails in debug sink, got %d", h.sink.ThumbnailCount())
	}

	var m manifest
	if err := json.Unmarshal(h.sink.SessionJSON, &m); err != nil {
		t.Fatalf("invalid session manifest: %v", err)
	}
	if m.SessionID != h.s.SessionID() || m.ClipFrames != 2 {
		t.Errorf("unexpected manifest %+v", m)
	}
}

func TestSession_ThumbnailsWithoutEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.ThumbnailInterval = time.Second
	h := newHarness(t, cfg)
	h.uploader.AcceptsThumbnailsFunc = func() bool { return false }
	h.start(t)

	h.step(t, 1)
	h.step(t, 2)
	h.s.Close()

	if n := len(h.uploader.ThumbnailCalls()); n != 0 {
		t.Errorf("expected no thumbnail uploads, got %d", n)
	}
	// The debug sink still gets them
	if h.sink.ThumbnailCount() != 2 {
		t.Errorf("expected 2 thumbnails in debug sink, got %d", h.sink.ThumbnailCount())
	}
}

func TestSession_NoThumbnailsWithoutEndpointOrSink(t *testing.T) {
	cfg := testConfig()
	cfg.ThumbnailInterval = time.Second
	backend := &mocks.RenderBackend{}
	logger := mocks.NewLogger()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(cfg, Deps{
		Backend:  backend,
		FS:       mocks.NewFileSystem(),
		Encoder:  &mocks.ClipEncoder{},
		Uploader: upload.New(mocks.NewFileSystem(), logger, upload.Options{}),
		Renderer: &mocks.Renderer{},
		Logger:   logger,
		Clock:    clock.Now,
	})
	defer s.Close()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		s.Update()
		clock.Advance(500 * time.Millisecond)
		backend.CompleteNextFilled(byte(i))
	}
	s.Update()
	s.Close()

	if s.Stats().Thumbnails != 0 {
		t.Errorf("expected no thumbnails, got %d", s.Stats().Thumbnails)
	}
	if n := logger.Count(ports.LevelError, "thumbnail"); n != 0 {
		t.Errorf("expected no thumbnail errors, got %v", logger.Entries())
	}
}

func TestSession_LaunchFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.encoder.LaunchFunc = func(clip pipeline.Clip) (ports.EncodeJob, error) {
		return nil, errors.New("no ffmpeg")
	}
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)
	h.step(t, 3)

	h.tickUntil(t, "launch failure", func() bool { return h.s.Stats().LaunchFailures == 1 })

	if h.logger.Count(ports.LevelError, "Could not encode clip 0") != 1 {
		t.Error("expected launch failure to be logged")
	}
	if !h.s.IsRecording() {
		t.Error("a failed launch must not stop recording")
	}
}

func TestSession_Drain(t *testing.T) {
	cfg := testConfig()
	cfg.FinalizeOnStop = true
	h := newHarness(t, cfg)
	h.encoder.LaunchFunc = func(clip pipeline.Clip) (ports.EncodeJob, error) {
		job := mocks.NewEncodeJob(clip)
		go func() {
			time.Sleep(30 * time.Millisecond)
			job.Exit(0, nil)
		}()
		return job, nil
	}
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)
	h.s.StopRecording()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.s.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	stats := h.s.ReaperStats()
	if stats.Reaped != 1 || stats.Uploaded != 1 {
		t.Errorf("expected 1 reaped and uploaded clip, got %+v", stats)
	}
}

func TestSession_DrainGivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.FinalizeOnStop = true
	h := newHarness(t, cfg)
	h.start(t)
	h.step(t, 1)
	h.step(t, 2)
	h.s.StopRecording()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.s.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if h.logger.Count(ports.LevelWarn, "Gave up waiting") != 1 {
		t.Error("expected a warning when giving up")
	}
}

// Package session wires frame capture, clip segmentation, external encodes
// and uploads into one recording driven by a single tick.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/cliprecorder/pkg/capture"
	"github.com/user/cliprecorder/pkg/diskwriter"
	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
	"github.com/user/cliprecorder/pkg/reaper"
	"github.com/user/cliprecorder/pkg/segment"
	"github.com/user/cliprecorder/pkg/upload"
)

// ErrUnsafeTempFolder is returned when the temp folder is not a directory
// strictly below the root. It is removed on every start.
var ErrUnsafeTempFolder = errors.New("session: temp folder must be a relative path below the root")

// CheckTempFolder rejects temp folder names that are absolute, empty, climb
// out with "..", or name the root itself.
func CheckTempFolder(folder string) error {
	if folder == "" || filepath.IsAbs(folder) || filepath.VolumeName(folder) != "" ||
		strings.HasPrefix(filepath.ToSlash(folder), "/") {
		return fmt.Errorf("%w: %q", ErrUnsafeTempFolder, folder)
	}
	if filepath.Clean(folder) == "." {
		return fmt.Errorf("%w: %q", ErrUnsafeTempFolder, folder)
	}
	for _, part := range strings.Split(filepath.ToSlash(folder), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", ErrUnsafeTempFolder, folder)
		}
	}
	return nil
}

// below reports whether dir lies strictly inside root.
func below(root, dir string) bool {
	if root == "" {
		root = "."
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, "../")
}

// drainPoll is how often Drain ticks while waiting for encodes and uploads.
const drainPoll = 20 * time.Millisecond

// Config holds the recording parameters.
type Config struct {
	Width       int // Recording resolution
	Height      int
	FrameRate   int
	ClipSeconds int
	FrameExt    string
	RootDir     string
	TempFolder  string

	EncoderWorkers int
	EncoderGrain   int
	WriteQueue     int
	WriteWorkers   int

	APIKey            string
	ThumbnailInterval time.Duration // 0 disables thumbnails
	KeepArtifacts     bool
	FinalizeOnStop    bool // Encode the partial clip on stop instead of abandoning it
}

// Deps holds the collaborators of a session.
type Deps struct {
	Backend  ports.RenderBackend
	FS       ports.FileSystem
	Encoder  ports.ClipEncoder
	Uploader ports.VideoUploader
	Prober   ports.ClipProber // Optional
	Renderer ports.Renderer   // Encodes thumbnails; optional when thumbnails are off
	Sink     ports.DebugSink
	Logger   ports.Logger
	Clock    func() time.Time
}

// Stats counts what happened during the session.
type Stats struct {
	FramesWritten  int
	FramesRejected int // Due frames the disk writer did not accept
	ClipsLaunched  int
	LaunchFailures int
	TailsAbandoned int
	Thumbnails     int
}

// sessionIDSetter is implemented by uploaders that tag uploads with the session.
type sessionIDSetter interface {
	SetSessionID(id string)
}

// thumbnailAcceptor is implemented by uploaders that may have no thumbnail
// endpoint. Uploaders without it are assumed to accept thumbnails.
type thumbnailAcceptor interface {
	AcceptsThumbnails() bool
}

// inFlighter is implemented by uploaders that can report unfinished uploads.
type inFlighter interface {
	InFlight() int
}

// launch is a clip waiting for its frames to reach disk.
type launch struct {
	clip  pipeline.Clip
	fence <-chan struct{}
}

// Session is one recorder instance. It is not safe for concurrent use; all
// methods run on the tick goroutine.
type Session struct {
	cfg    Config
	deps   Deps
	logger ports.Logger

	source    *capture.Source
	segmenter *segment.Segmenter
	pacer     *segment.Pacer
	reaper    *reaper.Reaper

	recording   bool
	sessionID   string
	startedAt   time.Time
	nextThumbMs int64
	launches    []launch
	thumbs      sync.WaitGroup
	thumbsOpen  atomic.Int64
	stats       Stats
	onStarted   []func(sessionID string)
	onStopped   []func(sessionID string)
}

// New creates an idle session.
func New(cfg Config, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = segment.DefaultFrameRate
	}

	s := &Session{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.WithComponent("session"),
	}

	s.source = capture.New(deps.Backend, deps.FS, deps.Logger, capture.Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		EncoderWorkers: cfg.EncoderWorkers,
		EncoderGrain:   cfg.EncoderGrain,
		WriteQueue:     cfg.WriteQueue,
		WriteWorkers:   cfg.WriteWorkers,
		Clock:          deps.Clock,
	})
	s.source.OnFrameCaptured(s.onFrame)

	s.segmenter = segment.New(deps.FS, deps.Logger, segment.Options{
		Root:        cfg.RootDir,
		TempFolder:  cfg.TempFolder,
		FrameRate:   cfg.FrameRate,
		ClipSeconds: cfg.ClipSeconds,
		FrameExt:    cfg.FrameExt,
	})
	s.pacer = segment.NewPacer(cfg.FrameRate)

	s.reaper = reaper.New(deps.FS, deps.Uploader, deps.Prober, deps.Logger, reaper.Options{
		APIKey:        cfg.APIKey,
		KeepArtifacts: cfg.KeepArtifacts,
	})

	return s
}

// OnRecordingStarted registers fn to run after every successful start.
func (s *Session) OnRecordingStarted(fn func(sessionID string)) {
	s.onStarted = append(s.onStarted, fn)
}

// OnRecordingStopped registers fn to run after every stop.
func (s *Session) OnRecordingStopped(fn func(sessionID string)) {
	s.onStopped = append(s.onStopped, fn)
}

// SessionID returns the id of the current or last recording.
func (s *Session) SessionID() string {
	return s.sessionID
}

// IsRecording reports whether frames are being captured.
func (s *Session) IsRecording() bool {
	return s.recording
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// ReaperStats returns the reaper counters.
func (s *Session) ReaperStats() reaper.Stats {
	return s.reaper.Stats()
}

// ReadbacksDropped returns the number of readbacks discarded by capture.
func (s *Session) ReadbacksDropped() int {
	return s.source.Dropped()
}

// WriterStats returns the frame writer counters.
func (s *Session) WriterStats() diskwriter.Stats {
	return s.source.WriterStats()
}

// CaptureSourceChanged binds capture to a new render target.
func (s *Session) CaptureSourceChanged(target ports.RenderTarget) error {
	return s.source.CaptureSourceChanged(target)
}

// StartRecording resets the temp folder, opens the first clip and starts
// capturing on the next Update.
func (s *Session) StartRecording() error {
	if s.recording {
		return nil
	}
	now := s.deps.Clock()

	if err := s.resetTempDir(); err != nil {
		return err
	}

	s.sessionID = upload.NewSessionID()
	if setter, ok := s.deps.Uploader.(sessionIDSetter); ok {
		setter.SetSessionID(s.sessionID)
	}

	if err := s.source.StartRecording(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	if err := s.segmenter.Start(now); err != nil {
		s.source.StopRecording()
		return fmt.Errorf("open first clip: %w", err)
	}
	s.pacer.Reset(now)

	s.recording = true
	s.startedAt = now
	s.nextThumbMs = 0
	s.logger.Info("Recording session %s at %dx%d, %d fps", s.sessionID, s.cfg.Width, s.cfg.Height, s.cfg.FrameRate)

	s.saveManifest()
	for _, fn := range s.onStarted {
		fn(s.sessionID)
	}
	return nil
}

// StopRecording stops capturing. The partial clip is handed to the encoder
// when FinalizeOnStop is set and abandoned otherwise. Running encodes and
// uploads carry on; call Update or Drain to finish them.
func (s *Session) StopRecording() {
	if !s.recording {
		return
	}
	now := s.deps.Clock()

	s.recording = false
	s.source.StopRecording()

	if tail := s.segmenter.Stop(now); tail != nil {
		if s.cfg.FinalizeOnStop {
			s.logger.Info("Finalizing clip %d with %d frames [%d, %d)", tail.Index, tail.Frames, tail.StartMs, tail.EndMs)
			s.schedule(*tail)
		} else {
			s.stats.TailsAbandoned++
			s.logger.Info("Abandoning clip %d with %d frames", tail.Index, tail.Frames)
		}
	}

	s.logger.Info("Recording session %s stopped after %d ms", s.sessionID, now.Sub(s.startedAt).Milliseconds())
	for _, fn := range s.onStopped {
		fn(s.sessionID)
	}
}

// Update advances one tick: completed readbacks are processed, clips whose
// frames are on disk are launched, and exited encodes are reaped. It never
// blocks.
func (s *Session) Update() {
	s.source.Update()
	s.launchReady()
	s.reaper.Reap()
}

// Drain ticks until every scheduled clip has been encoded and reaped and
// every upload has settled, or ctx is done. Call it after StopRecording.
func (s *Session) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		s.Update()
		if s.idle() {
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Warn("Gave up waiting with %d clips encoding and %d uploads pending",
				len(s.launches)+s.reaper.Len(), s.reaper.PendingUploads())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the capture buffers. Pending writes are flushed first.
func (s *Session) Close() {
	s.StopRecording()
	s.source.Close()
	s.thumbs.Wait()
}

func (s *Session) idle() bool {
	if len(s.launches) > 0 || s.reaper.Len() > 0 || s.reaper.PendingUploads() > 0 {
		return false
	}
	if s.thumbsOpen.Load() > 0 {
		return false
	}
	if f, ok := s.deps.Uploader.(inFlighter); ok && f.InFlight() > 0 {
		return false
	}
	return true
}

// onFrame runs for every accepted readback. The frame handed in is the new
// capture; the encoded frame saved to disk is the previous one.
func (s *Session) onFrame(frame pipeline.RawFrame) {
	if !s.recording {
		return
	}

	due := s.pacer.Due(frame.CapturedAt)
	for i := 0; i < due; i++ {
		if !s.writeFrame(frame.CapturedAt) {
			break
		}
	}

	s.maybeThumbnail(frame)
}

// writeFrame saves the encoded frame into the next slot. It reports false
// when the frame could not be written and the remaining due frames should be
// skipped.
func (s *Session) writeFrame(now time.Time) bool {
	// The first capture of a recording has nothing encoded behind it yet.
	if !s.source.HasEncodedFrame() {
		return false
	}
	slot, err := s.segmenter.Peek()
	if err != nil {
		return false
	}
	if !s.source.SaveFrameCaptureToDisk(slot.Path) {
		s.stats.FramesRejected++
		return false
	}
	s.stats.FramesWritten++

	full, err := s.segmenter.Commit(now)
	if full != nil {
		s.schedule(*full)
	}
	if err != nil {
		s.logger.Error("Could not open the next clip, stopping: %v", err)
		s.StopRecording()
		return false
	}
	return true
}

// schedule queues clip for launch once its last frame is on disk.
func (s *Session) schedule(clip pipeline.Clip) {
	s.launches = append(s.launches, launch{clip: clip, fence: s.source.Fence()})
}

// launchReady starts encodes for scheduled clips in order, stopping at the
// first clip whose frames are still being written.
func (s *Session) launchReady() {
	for len(s.launches) > 0 {
		select {
		case <-s.launches[0].fence:
		default:
			return
		}

		clip := s.launches[0].clip
		s.launches[0] = launch{}
		s.launches = s.launches[1:]

		job, err := s.deps.Encoder.Launch(clip)
		if err != nil {
			s.stats.LaunchFailures++
			s.logger.Error("Could not encode clip %d, leaving %s: %v", clip.Index, clip.Dir, err)
			continue
		}
		s.stats.ClipsLaunched++
		s.logger.Debug("Encoding clip %d from %s", clip.Index, clip.Dir)
		s.reaper.Enqueue(job)
	}
}

// maybeThumbnail snapshots frame every ThumbnailInterval of recording time and
// encodes it off the tick.
func (s *Session) maybeThumbnail(frame pipeline.RawFrame) {
	interval := s.cfg.ThumbnailInterval.Milliseconds()
	if interval <= 0 || s.deps.Renderer == nil {
		return
	}
	if !s.uploadsThumbnails() && !s.deps.Sink.Enabled() {
		return
	}

	elapsed := frame.CapturedAt.Sub(s.startedAt).Milliseconds()
	if elapsed < s.nextThumbMs {
		return
	}
	for s.nextThumbMs <= elapsed {
		s.nextThumbMs += interval
	}

	img := &image.RGBA{
		Pix:    append([]byte(nil), frame.Data...),
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	s.stats.Thumbnails++
	s.thumbs.Add(1)
	s.thumbsOpen.Add(1)
	go func() {
		defer s.thumbs.Done()
		defer s.thumbsOpen.Add(-1)
		s.sendThumbnail(img, elapsed)
	}()
}

func (s *Session) sendThumbnail(img image.Image, timeMs int64) {
	data, err := s.deps.Renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		s.logger.Warn("Could not encode thumbnail at %d ms: %v", timeMs, err)
		return
	}

	if s.deps.Sink.Enabled() {
		if err := s.deps.Sink.SaveThumbnail(timeMs, data); err != nil {
			s.logger.Warn("Could not save thumbnail at %d ms: %v", timeMs, err)
		}
	}

	if s.uploadsThumbnails() {
		// The uploader logs failures itself.
		<-s.deps.Uploader.UploadThumbnail(data, timeMs, s.cfg.APIKey)
	}
}

func (s *Session) uploadsThumbnails() bool {
	if a, ok := s.deps.Uploader.(thumbnailAcceptor); ok {
		return a.AcceptsThumbnails()
	}
	return true
}

// resetTempDir clears clip directories left behind by an earlier run. It is
// skipped while clips of a previous recording are still being encoded or
// uploaded from it.
func (s *Session) resetTempDir() error {
	dir := s.segmenter.TempDir()
	if !below(s.cfg.RootDir, dir) {
		return fmt.Errorf("%w: %s", ErrUnsafeTempFolder, dir)
	}
	if len(s.launches) > 0 || s.reaper.Len() > 0 || s.reaper.PendingUploads() > 0 {
		s.logger.Warn("Previous clips are still in flight, keeping %s", dir)
		return s.deps.FS.MkdirAll(dir)
	}

	if exists, err := s.deps.FS.Exists(dir); err == nil && exists {
		s.logger.Info("Removing stale clips in %s", dir)
		if err := s.deps.FS.RemoveAll(dir); err != nil {
			return fmt.Errorf("reset temp folder: %w", err)
		}
	}
	if err := s.deps.FS.MkdirAll(dir); err != nil {
		return fmt.Errorf("create temp folder: %w", err)
	}
	return nil
}

// manifest is the session.json written to the debug sink.
type manifest struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FrameRate   int       `json:"frame_rate"`
	ClipSeconds int       `json:"clip_seconds"`
	ClipFrames  int       `json:"clip_frames"`
	TempDir     string    `json:"temp_dir"`
}

func (s *Session) saveManifest() {
	if !s.deps.Sink.Enabled() {
		return
	}

	data, err := json.MarshalIndent(manifest{
		SessionID:   s.sessionID,
		StartedAt:   s.startedAt,
		Width:       s.cfg.Width,
		Height:      s.cfg.Height,
		FrameRate:   s.cfg.FrameRate,
		ClipSeconds: s.segmenter.Threshold() / s.cfg.FrameRate,
		ClipFrames:  s.segmenter.Threshold(),
		TempDir:     s.segmenter.TempDir(),
	}, "", "  ")
	if err != nil {
		return
	}
	if err := s.deps.Sink.SaveSessionJSON(data); err != nil {
		s.logger.Warn("Could not save session manifest: %v", err)
	}
}

type nopSink struct{}

func (nopSink) Enabled() bool                     { return false }
func (nopSink) SaveSessionJSON([]byte) error      { return nil }
func (nopSink) SaveThumbnail(int64, []byte) error { return nil }

// Package segment decides which clip directory each frame belongs to and
// when a clip is full.
package segment

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// Defaults for Options.
const (
	DefaultFrameRate   = 30
	DefaultClipSeconds = 10
	DefaultTempFolder  = "TempVideos"
	DefaultFrameExt    = "ppm"
)

// DirLayout is the time layout of clip directory names.
const DirLayout = "20060102_150405"

// ErrIdle is returned when frames arrive while not recording.
var ErrIdle = errors.New("segment: not recording")

// State is the segmenter state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

// String returns the string representation of the state.
func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Options configures the segmenter.
type Options struct {
	Root        string // Directory holding TempFolder
	TempFolder  string
	FrameRate   int
	ClipSeconds int
	FrameExt    string
}

// Slot is where the next frame goes.
type Slot struct {
	Clip  int    // Clip index within the session
	Index int    // Zero-based frame index within the clip
	Path  string // frame{Index}.{ext} under the clip directory
}

// Segmenter rolls clips every FrameRate*ClipSeconds frames.
// It is not safe for concurrent use; it runs on the tick goroutine.
type Segmenter struct {
	fs     ports.FileSystem
	logger ports.Logger
	opts   Options

	state     State
	startedAt time.Time
	clip      pipeline.Clip
	used      map[string]bool
}

// New creates an idle segmenter.
func New(fs ports.FileSystem, logger ports.Logger, opts Options) *Segmenter {
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.ClipSeconds <= 0 {
		opts.ClipSeconds = DefaultClipSeconds
	}
	if opts.TempFolder == "" {
		opts.TempFolder = DefaultTempFolder
	}
	if opts.FrameExt == "" {
		opts.FrameExt = DefaultFrameExt
	}

	return &Segmenter{
		fs:     fs,
		logger: logger.WithComponent("segment"),
		opts:   opts,
		used:   make(map[string]bool),
	}
}

// TempDir returns the directory that holds every clip directory.
func (s *Segmenter) TempDir() string {
	return filepath.Join(s.opts.Root, s.opts.TempFolder)
}

// Threshold returns the number of frames in a full clip.
func (s *Segmenter) Threshold() int {
	return s.opts.FrameRate * s.opts.ClipSeconds
}

// ClipDurationMs returns the nominal length of a full clip.
func (s *Segmenter) ClipDurationMs() int64 {
	return int64(s.opts.ClipSeconds) * 1000
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Current returns the clip being filled.
func (s *Segmenter) Current() (pipeline.Clip, bool) {
	return s.clip, s.state == StateRecording
}

// Start opens the first clip. now is the recording start time that clip
// windows are measured from.
func (s *Segmenter) Start(now time.Time) error {
	s.startedAt = now
	s.state = StateRecording

	if err := s.open(0, now); err != nil {
		s.state = StateIdle
		return err
	}
	return nil
}

// Peek returns the slot for the next frame without claiming it.
func (s *Segmenter) Peek() (Slot, error) {
	if s.state != StateRecording {
		return Slot{}, ErrIdle
	}
	return Slot{
		Clip:  s.clip.Index,
		Index: s.clip.Frames,
		Path:  s.clip.FramePath(s.clip.Frames),
	}, nil
}

// Commit claims the slot returned by Peek. When this fills the clip, the
// full clip is returned with its window set and a fresh clip is opened.
func (s *Segmenter) Commit(now time.Time) (*pipeline.Clip, error) {
	if s.state != StateRecording {
		return nil, ErrIdle
	}

	s.clip.Frames++
	if s.clip.Frames < s.Threshold() {
		return nil, nil
	}

	full := s.clip
	full.EndMs = full.StartMs + s.ClipDurationMs()
	s.logger.Info("Clip %d full with %d frames [%d, %d)", full.Index, full.Frames, full.StartMs, full.EndMs)

	if err := s.open(full.Index+1, now); err != nil {
		s.state = StateIdle
		return &full, err
	}
	return &full, nil
}

// Stop returns to idle. The partially filled clip is returned with its
// window ending at now, or nil when it holds no frames.
func (s *Segmenter) Stop(now time.Time) *pipeline.Clip {
	if s.state != StateRecording {
		return nil
	}
	s.state = StateIdle

	if s.clip.Frames == 0 {
		return nil
	}

	tail := s.clip
	tail.EndMs = now.Sub(s.startedAt).Milliseconds()
	if tail.EndMs < tail.StartMs {
		tail.EndMs = tail.StartMs
	}
	return &tail
}

// open creates the directory for clip index and makes it current.
func (s *Segmenter) open(index int, now time.Time) error {
	dir, err := s.uniqueDir(now)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dir); err != nil {
		return fmt.Errorf("segment: create clip directory: %w", err)
	}

	s.clip = pipeline.Clip{
		Index:    index,
		Dir:      dir,
		FrameExt: s.opts.FrameExt,
		StartMs:  int64(index) * s.ClipDurationMs(),
		OpenedAt: now,
	}
	s.logger.Debug("Opened clip %d at %s", index, dir)
	return nil
}

// uniqueDir names a directory after now, adding _N when the second is taken.
func (s *Segmenter) uniqueDir(now time.Time) (string, error) {
	base := filepath.Join(s.TempDir(), now.Format(DirLayout))
	dir := base

	for n := 1; ; n++ {
		if !s.used[dir] {
			exists, err := s.fs.Exists(dir)
			if err != nil {
				return "", fmt.Errorf("segment: check clip directory: %w", err)
			}
			if !exists {
				s.used[dir] = true
				return dir, nil
			}
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
}

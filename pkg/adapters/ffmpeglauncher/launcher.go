// Package ffmpeglauncher encodes clip directories into fragmented MP4 with an
// external ffmpeg process.
package ffmpeglauncher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when no ffmpeg executable can be located.
	ErrFFmpegNotFound = errors.New("ffmpeglauncher: ffmpeg not found")

	// ErrStart is returned when the process could not be started.
	ErrStart = errors.New("ffmpeglauncher: failed to start ffmpeg")
)

// Options configures the encode command line.
type Options struct {
	FFmpegPath   string        // Explicit executable, otherwise looked up
	FrameRate    int           // Input rate of the frame sequence
	OutputWidth  int           // Scale filter width
	OutputHeight int           // Scale filter height
	BitrateKbps  int           // Target video bitrate
	Timeout      time.Duration // Kill the process after this long (0: never)
}

// Launcher starts one ffmpeg process per clip.
type Launcher struct {
	path   string
	opts   Options
	logger ports.Logger
}

// New resolves the ffmpeg executable and returns a launcher.
func New(logger ports.Logger, opts Options) (*Launcher, error) {
	path, err := FindFFmpeg(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = 1000
	}

	return &Launcher{
		path:   path,
		opts:   opts,
		logger: logger.WithComponent("ffmpeg"),
	}, nil
}

// Path returns the resolved ffmpeg executable.
func (l *Launcher) Path() string {
	return l.path
}

// Args returns the ffmpeg arguments for clip.
func (l *Launcher) Args(clip pipeline.Clip) []string {
	return []string{
		"-y",
		"-f", "image2",
		"-r", strconv.Itoa(l.opts.FrameRate),
		"-i", clip.FramePattern(),
		"-c:v", "libx264",
		"-vf", fmt.Sprintf("scale=%d:%d", l.opts.OutputWidth, l.opts.OutputHeight),
		"-b:v", fmt.Sprintf("%dk", l.opts.BitrateKbps),
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		clip.OutputPath(),
	}
}

// Launch starts ffmpeg for clip and returns once the process is running.
func (l *Launcher) Launch(clip pipeline.Clip) (ports.EncodeJob, error) {
	ctx := context.Background()
	cancel := func() {}
	if l.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
	}

	cmd := exec.CommandContext(ctx, l.path, l.Args(clip)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}

	job := &Job{
		clip:    clip,
		pid:     cmd.Process.Pid,
		started: time.Now(),
		code:    -1,
		done:    make(chan struct{}),
	}
	l.logger.Info("Started ffmpeg (pid %d) for clip %d", job.pid, clip.Index)

	var drain sync.WaitGroup
	drain.Add(2)
	go l.forward(&drain, clip.Index, stdout)
	go l.forward(&drain, clip.Index, stderr)

	go func() {
		defer cancel()
		// Pipes must be drained before Wait closes them.
		drain.Wait()
		err := cmd.Wait()
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("encode timed out after %s: %w", l.opts.Timeout, ctx.Err())
		}
		job.finish(cmd.ProcessState, err)
	}()

	return job, nil
}

// forward copies process output to the debug log line by line.
func (l *Launcher) forward(wg *sync.WaitGroup, clipIndex int, r io.Reader) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			l.logger.Debug("[clip %d] %s", clipIndex, line)
		}
	}
}

var _ ports.ClipEncoder = (*Launcher)(nil)

package ffmpeglauncher

import (
	"os"
	"sync"
	"time"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// Job is a running ffmpeg process.
type Job struct {
	clip    pipeline.Clip
	pid     int
	started time.Time

	mu       sync.Mutex
	code     int
	err      error
	duration time.Duration
	done     chan struct{}
}

func (j *Job) finish(state *os.ProcessState, err error) {
	j.mu.Lock()
	if state != nil {
		j.code = state.ExitCode()
	}
	j.err = err
	j.duration = time.Since(j.started)
	j.mu.Unlock()
	close(j.done)
}

// Clip returns the clip being encoded.
func (j *Job) Clip() pipeline.Clip {
	return j.clip
}

// OutputPath returns the MP4 the process writes.
func (j *Job) OutputPath() string {
	return j.clip.OutputPath()
}

// PID returns the process id.
func (j *Job) PID() int {
	return j.pid
}

// Exited reports whether the process has exited.
func (j *Job) Exited() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Done is closed when the process has exited.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// ExitCode returns the exit code, or -1 while running or when killed.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.code
}

// Err returns the wait error.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Duration returns how long the process ran. It is zero while running.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.duration
}

var _ ports.EncodeJob = (*Job)(nil)

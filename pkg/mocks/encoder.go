package mocks

import (
	"sync"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// ClipEncoder is a mock implementation of ports.ClipEncoder.
// By default every launch returns a running EncodeJob that the test
// finishes with EncodeJob.Exit.
type ClipEncoder struct {
	LaunchFunc func(clip pipeline.Clip) (ports.EncodeJob, error)

	mu   sync.Mutex
	Jobs []*EncodeJob // Jobs created by the default launch, in order
}

func (m *ClipEncoder) Launch(clip pipeline.Clip) (ports.EncodeJob, error) {
	if m.LaunchFunc != nil {
		return m.LaunchFunc(clip)
	}
	job := NewEncodeJob(clip)
	m.mu.Lock()
	m.Jobs = append(m.Jobs, job)
	m.mu.Unlock()
	return job, nil
}

// Launched returns the jobs created so far.
func (m *ClipEncoder) Launched() []*EncodeJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*EncodeJob(nil), m.Jobs...)
}

var _ ports.ClipEncoder = (*ClipEncoder)(nil)

// EncodeJob is a mock ports.EncodeJob whose exit is driven by the test.
type EncodeJob struct {
	clip pipeline.Clip

	mu     sync.Mutex
	exited bool
	code   int
	err    error
	done   chan struct{}
}

// NewEncodeJob creates a running job for clip.
func NewEncodeJob(clip pipeline.Clip) *EncodeJob {
	return &EncodeJob{clip: clip, code: -1, done: make(chan struct{})}
}

// Exit marks the job as exited. Later calls are ignored.
func (m *EncodeJob) Exit(code int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return
	}
	m.exited = true
	m.code = code
	m.err = err
	close(m.done)
}

func (m *EncodeJob) Clip() pipeline.Clip {
	return m.clip
}

func (m *EncodeJob) OutputPath() string {
	return m.clip.OutputPath()
}

func (m *EncodeJob) Exited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exited
}

func (m *EncodeJob) Done() <-chan struct{} {
	return m.done
}

func (m *EncodeJob) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

func (m *EncodeJob) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

var _ ports.EncodeJob = (*EncodeJob)(nil)

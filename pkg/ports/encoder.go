package ports

import (
	"github.com/user/cliprecorder/pkg/pipeline"
)

// ClipEncoder launches one external encode per completed clip.
type ClipEncoder interface {
	// Launch starts encoding the clip's frames and returns without waiting
	// for the encoder to exit.
	Launch(clip pipeline.Clip) (EncodeJob, error)
}

// EncodeJob is a running external encode bound to one clip.
type EncodeJob interface {
	// Clip returns the clip being encoded.
	Clip() pipeline.Clip

	// OutputPath is the video file the encoder writes.
	OutputPath() string

	// Exited reports whether the process has exited. It never blocks.
	Exited() bool

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// ExitCode is the process exit code, or -1 while running or when unknown.
	ExitCode() int

	// Err is the error returned by the process wait, if any.
	Err() error
}

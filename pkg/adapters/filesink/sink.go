// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"path/filepath"

	"github.com/user/cliprecorder/pkg/ports"
)

// Sink saves debug output under a base directory:
//
//	session.json
//	thumbnails/{ms}.png
type Sink struct {
	baseDir string
	fs      ports.FileSystem
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem) *Sink {
	return &Sink{
		baseDir: baseDir,
		fs:      fs,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveSessionJSON saves the session manifest.
func (s *Sink) SaveSessionJSON(data []byte) error {
	if err := s.fs.MkdirAll(s.baseDir); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(s.baseDir, "session.json"), data)
}

// SaveThumbnail saves a PNG thumbnail named after its recording time.
func (s *Sink) SaveThumbnail(timeMs int64, data []byte) error {
	dir := filepath.Join(s.baseDir, "thumbnails")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(dir, fmt.Sprintf("%08d.png", timeMs)), data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)

package mocks

import (
	"sync"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// VideoUploader is a mock implementation of ports.VideoUploader.
// Calls are recorded; results are delivered immediately.
type VideoUploader struct {
	UploadVideoFunc     func(path string, startMs, endMs int64, apiKey string) error
	UploadThumbnailFunc func(data []byte, timeMs int64, apiKey string) error
	// AcceptsThumbnailsFunc defaults to accepting.
	AcceptsThumbnailsFunc func() bool

	mu         sync.Mutex
	Videos     []pipeline.UploadTicket
	Thumbnails []pipeline.UploadTicket
}

func (m *VideoUploader) UploadVideo(path string, startMs, endMs int64, apiKey string) <-chan pipeline.UploadResult {
	ticket := pipeline.UploadTicket{
		Kind:    pipeline.UploadVideo,
		Path:    path,
		StartMs: startMs,
		EndMs:   endMs,
		APIKey:  apiKey,
	}
	m.mu.Lock()
	m.Videos = append(m.Videos, ticket)
	m.mu.Unlock()

	var err error
	if m.UploadVideoFunc != nil {
		err = m.UploadVideoFunc(path, startMs, endMs, apiKey)
	}
	return deliver(pipeline.UploadResult{Ticket: ticket, Err: err})
}

func (m *VideoUploader) UploadThumbnail(data []byte, timeMs int64, apiKey string) <-chan pipeline.UploadResult {
	ticket := pipeline.UploadTicket{
		Kind:   pipeline.UploadThumbnail,
		Data:   data,
		TimeMs: timeMs,
		APIKey: apiKey,
	}
	m.mu.Lock()
	m.Thumbnails = append(m.Thumbnails, ticket)
	m.mu.Unlock()

	var err error
	if m.UploadThumbnailFunc != nil {
		err = m.UploadThumbnailFunc(data, timeMs, apiKey)
	}
	return deliver(pipeline.UploadResult{Ticket: ticket, Bytes: int64(len(data)), Err: err})
}

// VideoCalls returns a snapshot of the recorded video uploads.
func (m *VideoUploader) VideoCalls() []pipeline.UploadTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.UploadTicket(nil), m.Videos...)
}

func (m *VideoUploader) AcceptsThumbnails() bool {
	if m.AcceptsThumbnailsFunc != nil {
		return m.AcceptsThumbnailsFunc()
	}
	return true
}

// ThumbnailCalls returns a snapshot of the recorded thumbnail uploads.
func (m *VideoUploader) ThumbnailCalls() []pipeline.UploadTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.UploadTicket(nil), m.Thumbnails...)
}

func deliver(result pipeline.UploadResult) <-chan pipeline.UploadResult {
	ch := make(chan pipeline.UploadResult, 1)
	ch <- result
	return ch
}

var _ ports.VideoUploader = (*VideoUploader)(nil)

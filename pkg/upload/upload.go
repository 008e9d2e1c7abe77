// Package upload ships clip videos and thumbnails to a remote store.
//
// Every upload is two requests: a GET to a control endpoint that answers with
// a short-lived write URL, then a PUT of the bytes to that URL. Uploads are
// fire and forget. Nothing is retried, and a failed upload leaves its local
// file where it was.
package upload

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// SessionVersion prefixes every session id.
const SessionVersion = "V1"

// DefaultTimeout bounds one upload, both requests included.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrNoEndpoint is returned when the control endpoint for a kind is not configured.
	ErrNoEndpoint = errors.New("upload: control endpoint not configured")

	// ErrNoURL is returned when the control endpoint grants no write URL.
	ErrNoURL = errors.New("upload: control endpoint returned no url")

	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("upload: unexpected status")
)

// NewSessionID returns a fresh versioned session id.
func NewSessionID() string {
	return SessionVersion + uuid.NewString()
}

// Options configures the uploader.
type Options struct {
	VideoEndpoint     string
	ThumbnailEndpoint string
	Timeout           time.Duration
	Client            *http.Client
}

// Uploader implements ports.VideoUploader.
type Uploader struct {
	logger ports.Logger
	opts   Options
	stage  pipeline.Stage[pipeline.UploadTicket, pipeline.UploadResult]

	mu        sync.RWMutex
	sessionID string

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New creates an uploader. Video files are read through fs.
func New(fs ports.FileSystem, logger ports.Logger, opts Options) *Uploader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	grant := &GrantStage{
		client: opts.Client,
		endpoints: map[pipeline.UploadKind]string{
			pipeline.UploadVideo:     opts.VideoEndpoint,
			pipeline.UploadThumbnail: opts.ThumbnailEndpoint,
		},
	}
	put := &PutStage{client: opts.Client, fs: fs}

	return &Uploader{
		logger:    logger.WithComponent("upload"),
		opts:      opts,
		stage:     pipeline.Chain[pipeline.UploadTicket, pipeline.Destination, pipeline.UploadResult](grant, put),
		sessionID: NewSessionID(),
	}
}

// AcceptsThumbnails reports whether a thumbnail endpoint is configured.
func (u *Uploader) AcceptsThumbnails() bool {
	return u.opts.ThumbnailEndpoint != ""
}

// SetSessionID replaces the session id sent with later uploads.
func (u *Uploader) SetSessionID(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sessionID = id
}

// SessionID returns the current session id.
func (u *Uploader) SessionID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sessionID
}

// UploadVideo uploads the MP4 at path for the window [startMs, endMs).
func (u *Uploader) UploadVideo(path string, startMs, endMs int64, apiKey string) <-chan pipeline.UploadResult {
	return u.start(pipeline.UploadTicket{
		Kind:      pipeline.UploadVideo,
		Path:      path,
		StartMs:   startMs,
		EndMs:     endMs,
		SessionID: u.SessionID(),
		APIKey:    apiKey,
	})
}

// UploadThumbnail uploads PNG data taken at timeMs.
func (u *Uploader) UploadThumbnail(data []byte, timeMs int64, apiKey string) <-chan pipeline.UploadResult {
	return u.start(pipeline.UploadTicket{
		Kind:      pipeline.UploadThumbnail,
		Data:      data,
		TimeMs:    timeMs,
		SessionID: u.SessionID(),
		APIKey:    apiKey,
	})
}

// InFlight returns the number of uploads not yet finished.
func (u *Uploader) InFlight() int {
	return int(u.inFlight.Load())
}

// Wait blocks until every started upload has finished.
func (u *Uploader) Wait() {
	u.wg.Wait()
}

func (u *Uploader) start(ticket pipeline.UploadTicket) <-chan pipeline.UploadResult {
	ch := make(chan pipeline.UploadResult, 1)

	u.wg.Add(1)
	u.inFlight.Add(1)
	go func() {
		defer u.wg.Done()
		defer u.inFlight.Add(-1)
		ch <- u.run(ticket)
	}()

	return ch
}

func (u *Uploader) run(ticket pipeline.UploadTicket) pipeline.UploadResult {
	ctx, cancel := context.WithTimeout(context.Background(), u.opts.Timeout)
	defer cancel()

	started := time.Now()
	result, err := u.stage.Execute(ctx, ticket)
	if err != nil {
		u.logger.Error("Upload of %s failed: %v", describe(ticket), err)
		return pipeline.UploadResult{Ticket: ticket, Err: err}
	}

	u.logger.Info("Uploaded %s (%d bytes in %s)", describe(ticket), result.Bytes, time.Since(started).Round(time.Millisecond))
	return result
}

// describe names a ticket for log lines.
func describe(t pipeline.UploadTicket) string {
	if t.Kind == pipeline.UploadThumbnail {
		return "thumbnail@" + time.Duration(t.TimeMs*int64(time.Millisecond)).String()
	}
	return t.Path
}

// Ensure Uploader implements ports.VideoUploader
var _ ports.VideoUploader = (*Uploader)(nil)

// Package summarizer provides summary generation for recording sessions.
package summarizer

import "time"

// Summary contains all data collected during a recording session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `json:"generated_at"`
	SessionID   string    `json:"session_id"`

	// What was recorded
	Source SourceInfo `json:"source"`

	// Recording settings
	Settings Settings `json:"settings"`

	// Session results
	Results Results `json:"results"`
}

// SourceInfo describes the render backend and its target.
type SourceInfo struct {
	Kind   string `json:"kind"` // pattern or chrome
	Target string `json:"target"`
}

// Settings contains the recording configuration.
type Settings struct {
	CaptureWidth  int `json:"capture_width"`
	CaptureHeight int `json:"capture_height"`
	OutputWidth   int `json:"output_width"`
	OutputHeight  int `json:"output_height"`
	FrameRate     int `json:"frame_rate"`
	ClipSeconds   int `json:"clip_seconds"`
	BitrateKbps   int `json:"bitrate_kbps"`
}

// Results contains the counters of a finished session.
type Results struct {
	DurationMs       int64 `json:"duration_ms"`
	FramesWritten    int   `json:"frames_written"`
	FramesRejected   int   `json:"frames_rejected"`
	ReadbacksDropped int   `json:"readbacks_dropped"`
	ClipsLaunched    int   `json:"clips_launched"`
	ClipsUploaded    int   `json:"clips_uploaded"`
	ClipsLost        int   `json:"clips_lost"`
	EncoderFailures  int   `json:"encoder_failures"`
	Thumbnails       int   `json:"thumbnails"`
	BytesWritten     int64 `json:"bytes_written"`
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSession sets the session id.
func (b *Builder) WithSession(id string) *Builder {
	b.summary.SessionID = id
	return b
}

// WithSource sets what was recorded.
func (b *Builder) WithSource(kind, target string) *Builder {
	b.summary.Source = SourceInfo{
		Kind:   kind,
		Target: target,
	}
	return b
}

// WithSettings sets recording settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithResults sets session results.
func (b *Builder) WithResults(results Results) *Builder {
	b.summary.Results = results
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

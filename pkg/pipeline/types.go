package pipeline

import (
	"fmt"
	"path/filepath"
	"time"
)

// =============================================================================
// Capture Types
// =============================================================================

// RawFrame is one pixel buffer read back from the render backend.
// Data holds Width*Height*4 bytes in RGBA order and must not be mutated
// after delivery; it is only valid for the duration of the callback it is
// handed to.
type RawFrame struct {
	Data       []byte
	Width      int
	Height     int
	Sequence   uint64    // Monotonic readback counter for the session
	CapturedAt time.Time // When the readback completed
}

// PixelCount returns the number of pixels in the frame.
func (f RawFrame) PixelCount() int {
	return f.Width * f.Height
}

// =============================================================================
// Clip Types
// =============================================================================

// ClipOutputName is the file the external encoder writes inside a clip directory.
const ClipOutputName = "output.mp4"

// Clip is a directory of consecutive frames destined for one encode.
type Clip struct {
	Index    int    // Zero-based clip number within the session
	Dir      string // Directory holding frame{N}.{ext}
	FrameExt string // Extension of frame files, without dot
	Frames   int    // Number of frames written so far
	StartMs  int64  // Window start, relative to recording start
	EndMs    int64  // Window end (exclusive), set at hand-off
	OpenedAt time.Time
}

// FramePath returns the path of the frame with the given in-clip index.
func (c Clip) FramePath(index int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("frame%d.%s", index, c.FrameExt))
}

// FramePattern returns the printf-style pattern the external encoder reads.
func (c Clip) FramePattern() string {
	return filepath.Join(c.Dir, "frame%d."+c.FrameExt)
}

// FrameGlob returns a glob matching every frame file of the clip.
func (c Clip) FrameGlob() string {
	return filepath.Join(c.Dir, "frame*."+c.FrameExt)
}

// OutputPath returns where the encoded video of the clip is written.
func (c Clip) OutputPath() string {
	return filepath.Join(c.Dir, ClipOutputName)
}

// =============================================================================
// Upload Types
// =============================================================================

// UploadKind distinguishes the two upload flavours.
type UploadKind int

const (
	UploadVideo UploadKind = iota
	UploadThumbnail
)

// String returns the string representation of the upload kind.
func (k UploadKind) String() string {
	switch k {
	case UploadVideo:
		return "video"
	case UploadThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type sent with the upload body.
func (k UploadKind) ContentType() string {
	if k == UploadThumbnail {
		return "image/png"
	}
	return "video/mp4"
}

// UploadTicket is a single, consume-once upload request.
type UploadTicket struct {
	Kind      UploadKind
	Path      string // Local file for videos
	Data      []byte // In-memory bytes for thumbnails
	StartMs   int64  // Video window start
	EndMs     int64  // Video window end
	TimeMs    int64  // Thumbnail timestamp
	SessionID string
	APIKey    string
}

// Destination is a short-lived write URL granted by the control endpoint.
type Destination struct {
	Ticket UploadTicket
	URL    string
}

// UploadResult reports how an upload ended.
type UploadResult struct {
	Ticket UploadTicket
	Bytes  int64 // Bytes sent to the destination
	Err    error
}

// OK reports whether the upload succeeded.
func (r UploadResult) OK() bool {
	return r.Err == nil
}

package ports

import (
	"github.com/user/cliprecorder/pkg/pipeline"
)

// VideoUploader ships finished clips and thumbnails to the remote store.
// Both calls return immediately; the channel receives one result when the
// upload finishes or is abandoned. Callers are free to ignore it.
type VideoUploader interface {
	UploadVideo(path string, startMs, endMs int64, apiKey string) <-chan pipeline.UploadResult
	UploadThumbnail(data []byte, timeMs int64, apiKey string) <-chan pipeline.UploadResult
}

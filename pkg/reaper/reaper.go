// Package reaper finishes encode jobs in the order they were launched.
//
// Each tick the reaper looks at the oldest running encode. Once it has
// exited, the clip's frame files are deleted and the video is handed to the
// uploader. A job that is still running blocks every job behind it, which
// keeps uploads in clip order.
package reaper

import (
	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// Options configures the reaper.
type Options struct {
	APIKey        string
	KeepArtifacts bool // Keep output.mp4 and the clip directory after a successful upload
}

// Stats counts reaped jobs and settled uploads.
type Stats struct {
	Reaped   int
	Failed   int // Encoders that exited with an error
	Uploaded int
	Lost     int // Uploads that failed
}

type pendingUpload struct {
	clip   pipeline.Clip
	result <-chan pipeline.UploadResult
}

// Reaper owns the FIFO of running encode jobs.
// It is not safe for concurrent use; it runs on the tick goroutine.
type Reaper struct {
	fs       ports.FileSystem
	uploader ports.VideoUploader
	prober   ports.ClipProber
	logger   ports.Logger
	opts     Options

	queue   []ports.EncodeJob
	uploads []pendingUpload
	stats   Stats
}

// New creates a reaper. prober may be nil.
func New(fs ports.FileSystem, uploader ports.VideoUploader, prober ports.ClipProber, logger ports.Logger, opts Options) *Reaper {
	return &Reaper{
		fs:       fs,
		uploader: uploader,
		prober:   prober,
		logger:   logger.WithComponent("reaper"),
		opts:     opts,
	}
}

// Enqueue appends a launched job to the FIFO.
func (r *Reaper) Enqueue(job ports.EncodeJob) {
	r.queue = append(r.queue, job)
}

// Len returns the number of jobs not yet reaped.
func (r *Reaper) Len() int {
	return len(r.queue)
}

// PendingUploads returns the number of uploads whose result is not yet known.
func (r *Reaper) PendingUploads() int {
	return len(r.uploads)
}

// Stats returns the counters.
func (r *Reaper) Stats() Stats {
	return r.stats
}

// Reap pops every exited job from the head of the FIFO, stopping at the first
// one still running, and settles finished uploads. It returns the number of
// jobs popped. It never blocks.
func (r *Reaper) Reap() int {
	n := 0
	for len(r.queue) > 0 && r.queue[0].Exited() {
		job := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.finish(job)
		n++
	}

	r.collect()
	return n
}

func (r *Reaper) finish(job ports.EncodeJob) {
	clip := job.Clip()
	r.stats.Reaped++

	if code, err := job.ExitCode(), job.Err(); code != 0 || err != nil {
		r.stats.Failed++
		r.logger.Warn("Encoder for clip %d exited with code %d: %v", clip.Index, code, err)
	}

	r.deleteFrames(clip)

	if r.prober != nil {
		if info, err := r.prober.Probe(job.OutputPath()); err != nil {
			r.logger.Warn("Could not inspect %s: %v", job.OutputPath(), err)
		} else {
			r.logger.Debug("Clip %d: %s, %d fragments, %d samples, %dms, %d bytes",
				clip.Index, info.Codec, info.Fragments, info.Samples, info.DurationMs, info.Size)
		}
	}

	r.logger.Info("Uploading clip %d [%d, %d)", clip.Index, clip.StartMs, clip.EndMs)
	ch := r.uploader.UploadVideo(job.OutputPath(), clip.StartMs, clip.EndMs, r.opts.APIKey)
	r.uploads = append(r.uploads, pendingUpload{clip: clip, result: ch})
}

func (r *Reaper) deleteFrames(clip pipeline.Clip) {
	frames, err := r.fs.Glob(clip.FrameGlob())
	if err != nil {
		r.logger.Warn("Could not list frames of clip %d: %v", clip.Index, err)
		return
	}

	for _, path := range frames {
		if err := r.fs.Remove(path); err != nil {
			r.logger.Warn("Could not delete %s: %v", path, err)
		}
	}
	r.logger.Debug("Deleted %d frames of clip %d", len(frames), clip.Index)
}

// collect settles uploads that have reported a result.
func (r *Reaper) collect() {
	kept := r.uploads[:0]
	for _, p := range r.uploads {
		select {
		case res := <-p.result:
			r.settle(p.clip, res)
		default:
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(r.uploads); i++ {
		r.uploads[i] = pendingUpload{}
	}
	r.uploads = kept
}

func (r *Reaper) settle(clip pipeline.Clip, res pipeline.UploadResult) {
	if !res.OK() {
		r.stats.Lost++
		r.logger.Warn("Clip %d was not uploaded, leaving %s", clip.Index, clip.Dir)
		return
	}

	r.stats.Uploaded++
	if r.opts.KeepArtifacts {
		return
	}
	if err := r.fs.RemoveAll(clip.Dir); err != nil {
		r.logger.Warn("Could not remove %s: %v", clip.Dir, err)
	}
}

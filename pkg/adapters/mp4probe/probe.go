// Package mp4probe inspects the fragmented MP4 files produced for each clip.
package mp4probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/cliprecorder/pkg/ports"
)

// ErrNoVideoTrack is returned when the file has no video track.
var ErrNoVideoTrack = errors.New("mp4probe: no video track found")

// Prober implements ports.ClipProber with mp4ff.
type Prober struct{}

// New creates a new Prober.
func New() *Prober {
	return &Prober{}
}

// Probe reads the MP4 at path.
func (p *Prober) Probe(path string) (ports.ClipInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.ClipInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ports.ClipInfo{}, fmt.Errorf("stat file: %w", err)
	}

	result, err := p.ProbeReader(f)
	result.Size = info.Size()
	return result, err
}

// ProbeBytes reads an MP4 held in memory.
func (p *Prober) ProbeBytes(data []byte) (ports.ClipInfo, error) {
	result, err := p.ProbeReader(bytes.NewReader(data))
	result.Size = int64(len(data))
	return result, err
}

// ProbeReader reads an MP4 from r.
func (p *Prober) ProbeReader(r io.ReadSeeker) (ports.ClipInfo, error) {
	var info ports.ClipInfo

	file, err := mp4.DecodeFile(r)
	if err != nil {
		return info, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if file.Init != nil && file.Init.Moov != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return info, ErrNoVideoTrack
	}

	trak := videoTrack(moov)
	if trak == nil {
		return info, ErrNoVideoTrack
	}
	info.Codec = sampleEntryType(trak)

	timescale := uint64(1000)
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale != 0 {
		timescale = uint64(trak.Mdia.Mdhd.Timescale)
	}

	if !file.IsFragmented() {
		if stts := trak.Mdia.Minf.Stbl.Stts; stts != nil {
			var total uint64
			for i, count := range stts.SampleCount {
				info.Samples += int(count)
				total += uint64(count) * uint64(stts.SampleTimeDelta[i])
			}
			info.DurationMs = int64(total * 1000 / timescale)
		}
		return info, nil
	}

	info.Fragmented = true
	trackID := trak.Tkhd.TrackID

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var total uint64
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			info.Fragments++

			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return info, fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				total += uint64(s.Dur)
			}
			info.Samples += len(samples)
		}
	}
	info.DurationMs = int64(total * 1000 / timescale)

	return info, nil
}

func videoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		if trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

func sampleEntryType(trak *mp4.TrakBox) string {
	stsd := trak.Mdia.Minf.Stbl.Stsd
	if stsd == nil || len(stsd.Children) == 0 {
		return "unknown"
	}
	return stsd.Children[0].Type()
}

// Ensure Prober implements ports.ClipProber
var _ ports.ClipProber = (*Prober)(nil)

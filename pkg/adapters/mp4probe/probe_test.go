package mp4probe

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

// buildFragmented writes a single-track fMP4 with one fragment per entry of
// fragments, each holding that many samples of 1/fps seconds.
func buildFragmented(t *testing.T, fps int, fragments []int) []byte {
	t.Helper()

	timescale := uint32(fps * 1000)
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	trak := init.Moov.Trak

	entry := mp4.CreateVisualSampleEntryBox("av01", 64, 48, &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{Version: 1, ChromaSubsamplingX: 1, ChromaSubsamplingY: 1},
	})
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	dur := timescale / uint32(fps)
	var decodeTime uint64
	for i, n := range fragments {
		frag, err := mp4.CreateFragment(uint32(i+1), 1)
		if err != nil {
			t.Fatal(err)
		}
		for s := 0; s < n; s++ {
			data := []byte{0x12, 0x00, byte(s)}
			frag.AddFullSample(mp4.FullSample{
				Sample:     mp4.Sample{Flags: mp4.SyncSampleFlags, Size: uint32(len(data)), Dur: dur},
				DecodeTime: decodeTime,
				Data:       data,
			})
			decodeTime += uint64(dur)
		}
		if err := frag.Encode(&buf); err != nil {
			t.Fatal(err)
		}
	}

	return buf.Bytes()
}

func TestProber_ProbeBytes(t *testing.T) {
	data := buildFragmented(t, 30, []int{30, 30, 15})

	info, err := New().ProbeBytes(data)
	if err != nil {
		t.Fatalf("ProbeBytes failed: %v", err)
	}

	if !info.Fragmented {
		t.Error("expected fragmented file")
	}
	if info.Codec != "av01" {
		t.Errorf("expected av01, got %s", info.Codec)
	}
	if info.Fragments != 3 {
		t.Errorf("expected 3 fragments, got %d", info.Fragments)
	}
	if info.Samples != 75 {
		t.Errorf("expected 75 samples, got %d", info.Samples)
	}
	if info.DurationMs != 2500 {
		t.Errorf("expected 2500ms, got %d", info.DurationMs)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), info.Size)
	}
}

func TestProber_Probe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.mp4")
	data := buildFragmented(t, 10, []int{10})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	info, err := New().Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.DurationMs != 1000 || info.Size != int64(len(data)) {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestProber_Errors(t *testing.T) {
	p := New()

	if _, err := p.Probe(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}

	// A bare init segment with an audio track only
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "en")
	var buf bytes.Buffer
	mp4.NewFtyp("isom", 0x200, []string{"isom"}).Encode(&buf)
	init.Moov.Encode(&buf)

	if _, err := p.ProbeBytes(buf.Bytes()); !errors.Is(err, ErrNoVideoTrack) {
		t.Errorf("expected ErrNoVideoTrack, got %v", err)
	}
}

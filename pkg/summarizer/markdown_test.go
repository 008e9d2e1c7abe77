package summarizer

import (
	"strings"
	"testing"
	"time"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		SessionID:   "V1d2a6f3f0-0000-4000-8000-000000000000",
		Source:      SourceInfo{Kind: "chrome", Target: "https://example.com"},
		Settings: Settings{
			CaptureWidth:  1280,
			CaptureHeight: 720,
			OutputWidth:   640,
			OutputHeight:  360,
			FrameRate:     30,
			ClipSeconds:   10,
			BitrateKbps:   1000,
		},
		Results: Results{
			DurationMs:       25400,
			FramesWritten:    762,
			FramesRejected:   3,
			ReadbacksDropped: 1,
			ClipsLaunched:    2,
			ClipsUploaded:    2,
			Thumbnails:       25,
			BytesWritten:     2 * 1024 * 1024 * 1024,
		},
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Recording Summary",
		"2026-01-15T10:30:00Z",
		"| Session ID | V1d2a6f3f0-0000-4000-8000-000000000000 |",
		"| Source | chrome |",
		"| Target | https://example.com |",
		"| Recording Duration | 25.4 s |",
		"| Capture Size | 1280x720 |",
		"| Output Size | 640x360 |",
		"| Frame Rate | 30 fps |",
		"| Bitrate | 1000 kbps |",
		"| Frames Written | 762 |",
		"| Frame Data Written | 2.00 GB |",
		"| Clips Uploaded | 2 |",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
}

func TestMarkdownFormatter_NoTarget(t *testing.T) {
	summary := sampleSummary()
	summary.Source = SourceInfo{Kind: "pattern"}

	result := NewMarkdownFormatter().Format(summary)

	if strings.Contains(result, "| Target |") {
		t.Error("output should not contain an empty target row")
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Recording Summary": "記録サマリー",
			"Frames Written":    "書き込みフレーム数",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(sampleSummary())

	if !strings.Contains(result, "記録サマリー") {
		t.Error("expected translated 'Recording Summary'")
	}
	if !strings.Contains(result, "| 書き込みフレーム数 | 762 |") {
		t.Error("expected translated 'Frames Written'")
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.0")).Format(sampleSummary())

	if !strings.Contains(result, "cliprecorder v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1536 * 1024 * 1024, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatBytes(tt.bytes); got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	if got := formatMs(999); got != "999 ms" {
		t.Errorf("formatMs(999) = %q", got)
	}
	if got := formatMs(1500); got != "1.5 s" {
		t.Errorf("formatMs(1500) = %q", got)
	}
}

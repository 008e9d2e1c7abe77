package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(fn func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = fn
	}
}

// WithVersion adds the program version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a formatter. Labels are left untranslated by default.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Recording Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## %s\n\n", t("Session"))
	f.header(&b)
	f.row(&b, "Session ID", s.SessionID)
	f.row(&b, "Source", s.Source.Kind)
	if s.Source.Target != "" {
		f.row(&b, "Target", s.Source.Target)
	}
	f.row(&b, "Recording Duration", formatMs(s.Results.DurationMs))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	f.header(&b)
	f.row(&b, "Capture Size", fmt.Sprintf("%dx%d", s.Settings.CaptureWidth, s.Settings.CaptureHeight))
	f.row(&b, "Output Size", fmt.Sprintf("%dx%d", s.Settings.OutputWidth, s.Settings.OutputHeight))
	f.row(&b, "Frame Rate", fmt.Sprintf("%d fps", s.Settings.FrameRate))
	f.row(&b, "Clip Length", fmt.Sprintf("%d s", s.Settings.ClipSeconds))
	f.row(&b, "Bitrate", fmt.Sprintf("%d kbps", s.Settings.BitrateKbps))
	b.WriteString("\n")

	r := s.Results
	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	f.header(&b)
	f.row(&b, "Frames Written", fmt.Sprint(r.FramesWritten))
	f.row(&b, "Frames Rejected", fmt.Sprint(r.FramesRejected))
	f.row(&b, "Readbacks Dropped", fmt.Sprint(r.ReadbacksDropped))
	f.row(&b, "Frame Data Written", formatBytes(r.BytesWritten))
	f.row(&b, "Clips Encoded", fmt.Sprint(r.ClipsLaunched))
	f.row(&b, "Encoder Failures", fmt.Sprint(r.EncoderFailures))
	f.row(&b, "Clips Uploaded", fmt.Sprint(r.ClipsUploaded))
	f.row(&b, "Clips Lost", fmt.Sprint(r.ClipsLost))
	f.row(&b, "Thumbnails", fmt.Sprint(r.Thumbnails))

	b.WriteString("\n---\n")
	footer := t("Generated by") + " cliprecorder"
	if f.version != "" {
		footer += " " + f.version
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func (f *MarkdownFormatter) header(b *strings.Builder) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", f.translate("Item"), f.translate("Value"))
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", f.translate(label), value)
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return fmt.Sprintf("%.1f s", float64(ms)/1000)
}

// formatBytes formats a byte count using binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}

var _ Formatter = (*MarkdownFormatter)(nil)

package summarizer

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Formatter converts a Summary to the text written to disk.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(summary *Summary) string

// Format implements Formatter.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// JSONFormatter renders a summary as indented JSON for machine consumers.
type JSONFormatter struct{}

// Format implements Formatter.
func (JSONFormatter) Format(summary *Summary) string {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "{}\n"
	}
	return string(data) + "\n"
}

// FormatterFor picks JSON for .json paths and Markdown for everything else.
func FormatterFor(path string, opts ...MarkdownOption) Formatter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONFormatter{}
	}
	return NewMarkdownFormatter(opts...)
}

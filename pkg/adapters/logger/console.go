// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/user/cliprecorder/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// output is shared by a logger and every logger derived from it. Encoder,
// upload and thumbnail goroutines log concurrently, so lines are written
// under one lock.
type output struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	color   bool
	started time.Time
	now     func() time.Time
}

// ConsoleLogger logs messages to the console with color support. Every line
// is stamped with the time since the logger was created.
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	sink      *output
}

// NewConsole creates a console logger writing to stdout and stderr.
// Color output is automatically enabled when stdout is a terminal.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	return NewConsoleTo(os.Stdout, os.Stderr, level)
}

// NewConsoleTo creates a console logger writing debug and info lines to out
// and warnings and errors to errOut.
func NewConsoleTo(out, errOut io.Writer, level ports.LogLevel) *ConsoleLogger {
	return &ConsoleLogger{
		level: level,
		sink: &output{
			out:     out,
			errOut:  errOut,
			color:   isTerminal(out),
			started: time.Now(),
			now:     time.Now,
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(ports.LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(ports.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(ports.LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a logger tagging its lines with component.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	return &ConsoleLogger{
		level:     l.level,
		component: component,
		sink:      l.sink,
	}
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	s := l.sink

	// Messages are lexicon keys
	translated := l10n.F(msg, args...)
	stamp := fmt.Sprintf("%8.3fs", s.now().Sub(s.started).Seconds())

	var line string
	switch {
	case l.component != "" && s.color:
		line = fmt.Sprintf("%s %s[%s]%s %s", stamp, colorCyan, l.component, colorReset, translated)
	case l.component != "":
		line = fmt.Sprintf("%s [%s] %s", stamp, l.component, translated)
	default:
		line = stamp + " " + translated
	}

	if s.color {
		switch level {
		case ports.LevelDebug:
			line = colorGray + line + colorReset
		case ports.LevelWarn:
			line = colorYellow + line + colorReset
		case ports.LevelError:
			line = colorRed + line + colorReset
		}
	}

	w := s.out
	if level >= ports.LevelWarn {
		w = s.errOut
	}

	s.mu.Lock()
	fmt.Fprintln(w, line)
	s.mu.Unlock()
}

var _ ports.Logger = (*ConsoleLogger)(nil)

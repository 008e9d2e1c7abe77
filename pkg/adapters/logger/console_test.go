package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/cliprecorder/pkg/ports"
)

func newTestConsole(level ports.LogLevel) (*ConsoleLogger, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	l := NewConsoleTo(&out, &errOut, level)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.sink.started = start
	l.sink.now = func() time.Time { return start.Add(1500 * time.Millisecond) }
	return l, &out, &errOut
}

func TestConsoleLogger_Streams(t *testing.T) {
	l, out, errOut := newTestConsole(ports.LevelDebug)

	l.Debug("debug line %d", 1)
	l.Info("info line %d", 2)
	l.Warn("warn line %d", 3)
	l.Error("error line %d", 4)

	if got := out.String(); !strings.Contains(got, "debug line 1") || !strings.Contains(got, "info line 2") {
		t.Errorf("expected debug and info on stdout, got %q", got)
	}
	if got := errOut.String(); !strings.Contains(got, "warn line 3") || !strings.Contains(got, "error line 4") {
		t.Errorf("expected warn and error on stderr, got %q", got)
	}
	if strings.Contains(out.String(), "warn line") {
		t.Error("warnings must not go to stdout")
	}
}

func TestConsoleLogger_Level(t *testing.T) {
	l, out, errOut := newTestConsole(ports.LevelWarn)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("shown warn")

	if out.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "shown warn") {
		t.Errorf("expected warn line, got %q", errOut.String())
	}
}

func TestConsoleLogger_ComponentAndStamp(t *testing.T) {
	l, out, _ := newTestConsole(ports.LevelInfo)

	l.WithComponent("reaper").Info("popped %d", 2)

	want := "   1.500s [reaper] popped 2\n"
	if got := out.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestConsoleLogger_ConcurrentLines(t *testing.T) {
	l, out, _ := newTestConsole(ports.LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := l.WithComponent("upload")
			for j := 0; j < 50; j++ {
				c.Info("line %d-%d", i, j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "   1.500s [upload] line ") {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoop()
	if l.WithComponent("x") != ports.Logger(l) {
		t.Error("expected WithComponent to return the same logger")
	}
	l.Error("ignored %d", 1)
}

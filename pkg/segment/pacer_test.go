package segment

import (
	"testing"
	"time"
)

func TestPacer(t *testing.T) {
	interval := 100 * time.Millisecond

	tests := []struct {
		name  string
		steps []time.Duration // gaps between completions
		want  []int
	}{
		{"first completion is due", []time.Duration{0}, []int{1}},
		{"matching rate", []time.Duration{0, interval, interval, interval}, []int{1, 1, 1, 1}},
		{"fast renderer skips", []time.Duration{0, interval / 2, interval / 2, interval / 2, interval / 2}, []int{1, 0, 1, 0, 1}},
		{"slow renderer duplicates", []time.Duration{0, 3 * interval}, []int{1, 3}},
		{"stall is capped", []time.Duration{0, 5 * time.Second}, []int{1, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPacer(10)
			now := t0
			p.Reset(now)
			for i, gap := range tt.steps {
				now = now.Add(gap)
				if got := p.Due(now); got != tt.want[i] {
					t.Errorf("step %d: expected %d, got %d", i, tt.want[i], got)
				}
			}
		})
	}
}

func TestPacer_ClockGoingBackwards(t *testing.T) {
	p := NewPacer(10)
	p.Reset(t0)
	p.Due(t0)

	if got := p.Due(t0.Add(-time.Second)); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := p.Due(t0.Add(100 * time.Millisecond)); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

package segment

import "time"

// Pacer converts render completions into frame counts at a fixed capture
// rate. Slow rendering yields duplicates, fast rendering yields skips.
type Pacer struct {
	interval time.Duration
	maxBurst int
	last     time.Time
	acc      time.Duration
}

// NewPacer creates a pacer for frameRate frames per second. At most one
// second worth of frames is owed after a stall.
func NewPacer(frameRate int) *Pacer {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Pacer{
		interval: time.Second / time.Duration(frameRate),
		maxBurst: frameRate,
	}
}

// Interval returns the time between two captured frames.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Reset starts pacing at now. The first completion is always due.
func (p *Pacer) Reset(now time.Time) {
	p.last = now
	p.acc = p.interval
}

// Due returns how many frames the completion at now stands for.
func (p *Pacer) Due(now time.Time) int {
	if now.After(p.last) {
		p.acc += now.Sub(p.last)
		p.last = now
	}

	n := int(p.acc / p.interval)
	p.acc -= time.Duration(n) * p.interval
	if n > p.maxBurst {
		n = p.maxBurst
	}
	return n
}

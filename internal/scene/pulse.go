package scene

import (
	"sync"
	"time"
)

// DefaultPulse is how long the beat accent stays on.
const DefaultPulse = 100 * time.Millisecond

// Pulse is a short visual accent asserted whenever a new beat index is
// observed.
type Pulse struct {
	dur time.Duration
	now func() time.Time

	mu    sync.Mutex
	seen  bool
	last  int
	until time.Time
}

// NewPulse creates a pulse of the given length. A nil now uses time.Now.
func NewPulse(d time.Duration, now func() time.Time) *Pulse {
	if now == nil {
		now = time.Now
	}
	return &Pulse{dur: d, now: now}
}

// Duration returns how long the accent stays on after a new beat.
func (p *Pulse) Duration() time.Duration { return p.dur }

// Observe asserts the pulse if beat differs from the last one seen, or is
// the first. It reports whether it did.
func (p *Pulse) Observe(beat int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen && beat == p.last {
		return false
	}
	p.seen = true
	p.last = beat
	p.until = p.now().Add(p.dur)
	return true
}

// On reports whether the accent is currently asserted.
func (p *Pulse) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Before(p.until)
}

// Reset forgets the last beat and clears the accent.
func (p *Pulse) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = false
	p.last = 0
	p.until = time.Time{}
}

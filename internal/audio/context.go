package audio

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when scheduling against a closed context.
	ErrClosed = errors.New("audio: context closed")
	// ErrInvalidVoice is returned for voices that cannot be played.
	ErrInvalidVoice = errors.New("audio: invalid voice")
)

// Context is an audio processing context. Its clock counts rendered sample
// frames, so CurrentTime only moves when Render is called and is the
// authoritative time base for scheduled voices.
type Context struct {
	mu         sync.Mutex
	sampleRate int
	master     float64
	frame      int64
	voices     []*Voice
	closed     bool
}

// NewContext creates a context rendering at sampleRate with the given
// master gain.
func NewContext(sampleRate int, masterGain float64) (*Context, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate %d", sampleRate)
	}
	if masterGain < 0 {
		return nil, fmt.Errorf("audio: master gain %v", masterGain)
	}
	return &Context{sampleRate: sampleRate, master: masterGain}, nil
}

// SampleRate returns the rate the context renders at.
func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the context clock in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.frame) / float64(c.sampleRate)
}

// Schedule queues a copy of v. Voices that start in the past are played
// from the current position.
func (c *Context) Schedule(v Voice) error {
	if !v.validate() {
		return fmt.Errorf("%w: %s [%v, %v)", ErrInvalidVoice, v.Name, v.Start, v.Stop)
	}
	v.phase = 0
	v.filter = newHighpass(v.Highpass, float64(c.sampleRate))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.voices = append(c.voices, &v)
	return nil
}

// Pending returns the number of voices not yet finished.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// Render mixes all voices into dst (overwriting it) and advances the clock
// by len(dst) frames. A closed context renders silence and stays put.
func (c *Context) Render(dst []float64) {
	clear(dst)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	sr := float64(c.sampleRate)
	live := c.voices[:0]
	for _, v := range c.voices {
		if !v.render(dst, c.frame, sr) {
			live = append(live, v)
		}
	}
	clear(c.voices[len(live):])
	c.voices = live

	for i := range dst {
		dst[i] *= c.master
	}
	c.frame += int64(len(dst))
}

// Close releases all pending voices. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.voices = nil
	return nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

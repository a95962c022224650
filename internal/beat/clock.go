package beat

import (
	"context"
	"sync"
	"time"
)

// FrameSource delivers display-refresh timestamps until ctx is done.
type FrameSource interface {
	Frames(ctx context.Context) <-chan time.Duration
}

// Clock turns frame timestamps into a beat index. The first frame after
// Activate is beat 0; Deactivate forgets the reference so the next
// activation starts over.
type Clock struct {
	bpm float64

	mu     sync.Mutex
	active bool
	gen    uint64
	cancel context.CancelFunc
	ref    time.Duration
	hasRef bool
	beat   int
	sent   bool // first beat of this activation published

	subs map[chan int]struct{}
}

// NewClock creates an inactive clock at the given tempo.
func NewClock(bpm float64) *Clock {
	return &Clock{
		bpm:  bpm,
		subs: make(map[chan int]struct{}),
	}
}

// BPM returns the tempo the clock was created with.
func (c *Clock) BPM() float64 { return c.bpm }

// Activate starts consuming frames from src. It is a no-op while active.
func (c *Clock) Activate(src FrameSource) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		frames := src.Frames(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case ts, ok := <-frames:
				if !ok {
					return
				}
				c.frame(gen, ts)
			}
		}
	}()
}

// Deactivate cancels the pending frame registration and resets the clock.
func (c *Clock) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.active = false
	c.gen++
	c.reset()
}

// Active reports whether the clock is consuming frames.
func (c *Clock) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Beat returns the current beat index.
func (c *Clock) Beat() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beat
}

// Frame feeds one frame timestamp to an active clock and returns the beat.
// Inactive clocks ignore it.
func (c *Clock) Frame(ts time.Duration) int {
	c.mu.Lock()
	gen := c.gen
	active := c.active
	c.mu.Unlock()
	if !active {
		return 0
	}
	return c.frame(gen, ts)
}

func (c *Clock) frame(gen uint64, ts time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.active {
		return c.beat
	}
	if !c.hasRef {
		c.ref = ts
		c.hasRef = true
	}
	b := At(ts-c.ref, c.bpm)
	if b < c.beat {
		// out-of-order timestamp; the index never moves backwards
		b = c.beat
	}
	if b != c.beat || !c.sent {
		c.beat = b
		c.sent = true
		c.publish(b)
	}
	return b
}

// Subscribe returns a channel receiving beat changes. Delivery keeps only
// the latest value for slow readers. Call cancel to unsubscribe.
func (c *Clock) Subscribe() (<-chan int, func()) {
	ch := make(chan int, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// publish must be called with mu held.
func (c *Clock) publish(b int) {
	for ch := range c.subs {
		select {
		case ch <- b:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- b:
			default:
			}
		}
	}
}

// reset must be called with mu held.
func (c *Clock) reset() {
	c.hasRef = false
	c.ref = 0
	c.beat = 0
	c.sent = false
}

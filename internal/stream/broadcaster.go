package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	sent      uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	ID   string
	Kind string       // "http", "webrtc", "speaker"
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener of the given kind.
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		ID:   uuid.NewString(),
		Kind: kind,
		C:    make(chan []int16, 150), // ~3 seconds of buffer at 20ms/frame
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Repeated calls
// are ignored.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Counts returns active listeners grouped by kind.
func (b *Broadcaster) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int)
	for l := range b.listeners {
		out[l.Kind]++
	}
	return out
}

// FramesSent returns how many frames have been read from the source.
func (b *Broadcaster) FramesSent() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sent
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.Lock()
			b.sent++
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					// listener too slow, drop frame to keep broadcast moving
				}
			}
			b.mu.Unlock()
		}
	}
}

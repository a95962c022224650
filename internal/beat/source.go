package beat

import (
	"context"
	"time"
)

// TickerSource produces frame timestamps from a wall-clock ticker at FPS,
// measured from the moment Frames is called.
type TickerSource struct {
	FPS int
}

// Frames emits one timestamp per tick until ctx is done. Ticks missed by a
// slow reader are dropped.
func (s TickerSource) Frames(ctx context.Context) <-chan time.Duration {
	fps := s.FPS
	if fps <= 0 {
		fps = 60
	}
	out := make(chan time.Duration, 1)
	origin := time.Now()

	go func() {
		defer close(out)
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				select {
				case out <- now.Sub(origin):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ChanSource replays timestamps from a channel. Tests and offline renders
// use it to drive a clock on simulated time.
type ChanSource <-chan time.Duration

// Frames returns the underlying channel; ctx is owned by the sender.
func (s ChanSource) Frames(ctx context.Context) <-chan time.Duration {
	return s
}

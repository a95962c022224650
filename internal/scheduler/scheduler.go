package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
	"github.com/satindergrewal/lunabell/internal/beat"
)

// Target is the audio clock and voice sink the scheduler commits to.
type Target interface {
	CurrentTime() float64
	Schedule(v audio.Voice) error
}

// Config holds the scheduling parameters.
type Config struct {
	BPM         float64
	Lookahead   time.Duration // how far past the audio clock voices are committed
	Interval    time.Duration // polling period
	StartOffset time.Duration // delay of the first beat after New
}

// DefaultConfig returns 120 BPM, a 100ms window polled every 25ms, and a
// 50ms start offset.
func DefaultConfig() Config {
	return Config{
		BPM:         120,
		Lookahead:   100 * time.Millisecond,
		Interval:    25 * time.Millisecond,
		StartOffset: 50 * time.Millisecond,
	}
}

// Validate checks that polling is strictly faster than the lookahead
// window, otherwise beats can be committed after they were due.
func (c Config) Validate() error {
	switch {
	case c.BPM <= 0:
		return fmt.Errorf("scheduler: bpm must be positive, got %v", c.BPM)
	case c.Interval <= 0:
		return fmt.Errorf("scheduler: interval must be positive, got %v", c.Interval)
	case c.Lookahead <= c.Interval:
		return fmt.Errorf("scheduler: lookahead %v must exceed interval %v", c.Lookahead, c.Interval)
	case c.StartOffset < 0:
		return fmt.Errorf("scheduler: negative start offset %v", c.StartOffset)
	}
	return nil
}

// Status is a snapshot of the scheduling cursor.
type Status struct {
	NextEventTime float64 `json:"next_event_time"`
	BeatCount     int     `json:"beat_count"`
	Stopped       bool    `json:"stopped"`
}

// Scheduler commits the percussion pattern to a Target ahead of its clock.
type Scheduler struct {
	target    Target
	noise     *audio.NoiseBuffer
	spb       float64
	lookahead float64
	interval  time.Duration

	mu      sync.Mutex
	next    float64 // nextEventTime on the target clock
	beats   int
	stopped bool
}

// New creates a scheduler whose first beat falls StartOffset after the
// target's current time. cfg must pass Validate.
func New(target Target, noise *audio.NoiseBuffer, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		target:    target,
		noise:     noise,
		spb:       beat.SecondsPerBeat(cfg.BPM),
		lookahead: cfg.Lookahead.Seconds(),
		interval:  cfg.Interval,
		next:      target.CurrentTime() + cfg.StartOffset.Seconds(),
	}, nil
}

// Interval returns the polling period the scheduler was configured with.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Pump commits every beat starting inside the lookahead window and returns
// how many beats it advanced.
func (s *Scheduler) Pump() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}

	horizon := s.target.CurrentTime() + s.lookahead
	n := 0
	for s.next < horizon {
		for _, v := range Pattern(s.beats, s.next, s.spb, s.noise) {
			err := s.target.Schedule(v)
			if errors.Is(err, audio.ErrClosed) {
				// polling outlived the context
				s.stopped = true
				log.Debug().Int("beat", s.beats).Msg("audio context closed, scheduler stopping")
				return n
			}
			if err != nil {
				log.Warn().Err(err).
					Str("voice", v.Name).
					Int("beat", s.beats).
					Float64("duration", v.Duration()).
					Msg("voice skipped")
			}
		}
		s.next += s.spb
		s.beats++
		n++
	}
	return n
}

// Start polls Pump on every tick of t until the returned dispose function is
// called. Dispose is safe to call any number of times.
func (s *Scheduler) Start(t Ticker) (dispose func()) {
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C():
				s.Pump()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.Stop()
			close(done)
		})
	}
}

// Stop prevents any further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Status returns the current cursor.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		NextEventTime: s.next,
		BeatCount:     s.beats,
		Stopped:       s.stopped,
	}
}

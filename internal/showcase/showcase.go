// Package showcase is the presentation surface: it owns the audio graph,
// the percussion scheduler and the beat clock, and publishes what the page
// should display.
package showcase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
	"github.com/satindergrewal/lunabell/internal/beat"
	"github.com/satindergrewal/lunabell/internal/scene"
	"github.com/satindergrewal/lunabell/internal/scheduler"
)

// ErrAudioUnavailable is returned by Start when the audio graph could not be
// created. The visuals run regardless.
var ErrAudioUnavailable = errors.New("showcase: audio unavailable")

// GraphFactory creates the audio graph on first start.
type GraphFactory func() (*audio.Context, error)

// Sink receives the audio graph once it exists.
type Sink interface {
	Attach(c *audio.Context)
	Detach()
}

// Options holds the timing parameters of a showcase.
type Options struct {
	Scheduler     scheduler.Config
	FPS           int
	PulseDuration time.Duration
	MasterGain    float64
}

// DefaultOptions matches the stock 120 BPM showcase.
func DefaultOptions() Options {
	return Options{
		Scheduler:     scheduler.DefaultConfig(),
		FPS:           60,
		PulseDuration: scene.DefaultPulse,
		MasterGain:    audio.DefaultMasterGain,
	}
}

// State is one snapshot of the presentation.
type State struct {
	Started    bool        `json:"started"`
	Beat       int         `json:"beat"`
	Scene      scene.Scene `json:"scene"`
	Progress   float64     `json:"progress"`
	Rotation   float64     `json:"rotation"`
	Pulse      bool        `json:"pulse"`
	Copy       scene.Copy  `json:"copy"`
	Audio      bool        `json:"audio"`
	AudioTime  float64     `json:"audio_time"`
	AudioError string      `json:"audio_error,omitempty"`
}

// Showcase is the single start-to-play presentation component.
type Showcase struct {
	opts Options

	newGraph  GraphFactory
	newTicker func(time.Duration) scheduler.Ticker
	frames    beat.FrameSource
	sink      Sink

	clock      *beat.Clock
	beats      <-chan int
	unsubBeats func()
	pulse      *scene.Pulse

	mu       sync.Mutex
	started  bool
	graph    *audio.Context
	sched    *scheduler.Scheduler
	dispose  func()
	audioErr error
	closed   bool

	subMu sync.Mutex
	subs  map[chan State]struct{}
}

// New creates an idle showcase. By default the graph renders at
// audio.SampleRate, the scheduler polls on a wall-clock ticker and the beat
// clock runs on a ticker frame source at opts.FPS.
func New(opts Options) *Showcase {
	s := &Showcase{
		opts:      opts,
		newTicker: scheduler.NewWallTicker,
		frames:    beat.TickerSource{FPS: opts.FPS},
		clock:     beat.NewClock(opts.Scheduler.BPM),
		pulse:     scene.NewPulse(opts.PulseDuration, nil),
		subs:      make(map[chan State]struct{}),
	}
	s.beats, s.unsubBeats = s.clock.Subscribe()
	s.newGraph = func() (*audio.Context, error) {
		return audio.NewContext(audio.SampleRate, opts.MasterGain)
	}
	return s
}

// SetGraphFactory replaces how the audio graph is built.
func (s *Showcase) SetGraphFactory(fn GraphFactory) {
	s.mu.Lock()
	s.newGraph = fn
	s.mu.Unlock()
}

// SetTickerFunc replaces the scheduler's polling timer.
func (s *Showcase) SetTickerFunc(fn func(time.Duration) scheduler.Ticker) {
	s.mu.Lock()
	s.newTicker = fn
	s.mu.Unlock()
}

// SetFrameSource replaces the beat clock's frame callbacks.
func (s *Showcase) SetFrameSource(src beat.FrameSource) {
	s.mu.Lock()
	s.frames = src
	s.mu.Unlock()
}

// SetSink sets where the audio graph is rendered. Pass nil for none.
func (s *Showcase) SetSink(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Start begins playback. The first call builds the audio graph, starts the
// scheduler and activates the beat clock together; later calls only
// re-assert the started flag. A graph failure is reported wrapped in
// ErrAudioUnavailable while the visuals still start.
func (s *Showcase) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("showcase: closed")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}

	if err := s.opts.Scheduler.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("showcase: %w", err)
	}

	var startErr error
	graph, err := s.newGraph()
	if err != nil {
		s.audioErr = err
		startErr = fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		log.Warn().Err(err).Msg("audio graph unavailable, starting visuals only")
	} else {
		noise := audio.NewNoiseBuffer(graph.SampleRate())
		sched, err := scheduler.New(graph, noise, s.opts.Scheduler)
		if err != nil {
			// unreachable after Validate
			graph.Close()
			s.mu.Unlock()
			return fmt.Errorf("showcase: %w", err)
		}
		s.graph = graph
		s.sched = sched
		s.dispose = sched.Start(s.newTicker(sched.Interval()))
		if s.sink != nil {
			s.sink.Attach(graph)
		}
		log.Debug().
			Int("sample_rate", graph.SampleRate()).
			Dur("noise", noise.Duration()).
			Msg("audio graph ready")
	}
	s.clock.Activate(s.frames)
	s.started = true
	s.mu.Unlock()

	log.Info().
		Float64("bpm", s.opts.Scheduler.BPM).
		Bool("audio", graph != nil).
		Msg("showcase started")
	s.publish()
	return startErr
}

// BPM returns the tempo shared by the beat clock and the scheduler.
func (s *Showcase) BPM() float64 { return s.clock.BPM() }

// Started reports whether Start has been called.
func (s *Showcase) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// SchedulerStatus returns the percussion cursor, if audio is running.
func (s *Showcase) SchedulerStatus() (scheduler.Status, bool) {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		return scheduler.Status{}, false
	}
	return sched.Status(), true
}

// State returns the current snapshot.
func (s *Showcase) State() State {
	s.mu.Lock()
	started := s.started
	graph := s.graph
	audioErr := s.audioErr
	s.mu.Unlock()

	if !started {
		return State{Scene: scene.City, Progress: scene.Progress(0), Copy: scene.CopyFor(scene.City)}
	}

	f := scene.At(s.clock.Beat())
	st := State{
		Started:  true,
		Beat:     f.Beat,
		Scene:    f.Scene,
		Progress: f.Progress,
		Rotation: f.Rotation,
		Pulse:    s.pulse.On(),
		Copy:     scene.CopyFor(f.Scene),
		Audio:    graph != nil && !graph.Closed(),
	}
	if st.Audio {
		st.AudioTime = graph.CurrentTime()
	}
	if audioErr != nil {
		st.AudioError = audioErr.Error()
	}
	return st
}

// Subscribe returns a channel of snapshots, published on every beat and when
// the pulse clears. Slow readers only see the latest snapshot.
func (s *Showcase) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

// Run drives the pulse and snapshot publication. Blocks until ctx is
// cancelled.
func (s *Showcase) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.beats:
			if s.pulse.Observe(b) {
				timer.Reset(s.pulse.Duration())
			}
			s.publish()
		case <-timer.C:
			s.publish()
		}
	}
}

func (s *Showcase) publish() {
	st := s.State()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// Close stops the scheduler, the beat clock and releases the audio graph.
// It is safe to call more than once.
func (s *Showcase) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dispose, graph, sink := s.dispose, s.graph, s.sink
	s.dispose, s.graph, s.sched = nil, nil, nil
	s.started = false
	s.mu.Unlock()

	if dispose != nil {
		dispose()
	}
	s.clock.Deactivate()
	s.unsubBeats()
	s.pulse.Reset()
	if graph == nil {
		return nil
	}
	if sink != nil {
		sink.Detach()
	}
	if err := graph.Close(); err != nil {
		return fmt.Errorf("close audio graph: %w", err)
	}
	log.Info().Msg("showcase closed")
	return nil
}

package scheduler

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/lunabell/internal/audio"
)

type scheduled struct {
	at    float64 // target clock when Schedule was called
	voice audio.Voice
}

type fakeTarget struct {
	mu     sync.Mutex
	now    float64
	events []scheduled
	fail   func(audio.Voice) error
}

func (f *fakeTarget) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTarget) Schedule(v audio.Voice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(v); err != nil {
			return err
		}
	}
	f.events = append(f.events, scheduled{at: f.now, voice: v})
	return nil
}

func (f *fakeTarget) set(now float64) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *fakeTarget) snapshot() []scheduled {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduled(nil), f.events...)
}

func accents(events []scheduled) []audio.Voice {
	var out []audio.Voice
	for _, e := range events {
		if e.voice.Name == "kick" || e.voice.Name == "snare" {
			out = append(out, e.voice)
		}
	}
	return out
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// --- Config ---

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120.0, cfg.BPM)
	assert.Equal(t, 100*time.Millisecond, cfg.Lookahead)
	assert.Equal(t, 25*time.Millisecond, cfg.Interval)
	assert.Equal(t, 50*time.Millisecond, cfg.StartOffset)
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{BPM: 0, Lookahead: time.Second, Interval: time.Millisecond},
		{BPM: 120, Lookahead: time.Second, Interval: 0},
		{BPM: 120, Lookahead: 25 * time.Millisecond, Interval: 25 * time.Millisecond},
		{BPM: 120, Lookahead: time.Second, Interval: time.Millisecond, StartOffset: -time.Millisecond},
	}
	for i, cfg := range bad {
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

// --- Pattern ---

func TestPatternBarLayout(t *testing.T) {
	noise := audio.NewNoiseBuffer(1000)
	want := [][]string{
		{"kick", "hat", "offhat"},
		{"snare", "hat", "offhat"},
		{"kick", "hat", "offhat"},
		{"snare", "hat", "offhat"},
		{"kick", "hat", "offhat"},
	}
	for step, names := range want {
		voices := Pattern(step, 1, 0.5, noise)
		got := make([]string, len(voices))
		for i, v := range voices {
			got[i] = v.Name
		}
		assert.Equal(t, names, got, "step %d", step)
	}
}

func TestPatternTiming(t *testing.T) {
	noise := audio.NewNoiseBuffer(1000)
	voices := Pattern(1, 2, 0.5, noise)
	require.Len(t, voices, 3)

	assert.Equal(t, 2.0, voices[0].Start)
	assert.Equal(t, 2.0, voices[1].Start)
	assert.Equal(t, 2.25, voices[2].Start, "off-beat hat sits half a beat later")
	for _, v := range voices[1:] {
		assert.Same(t, noise, v.Buffer, "voices share one noise buffer")
	}
}

func TestVoiceParameters(t *testing.T) {
	noise := audio.NewNoiseBuffer(1000)

	k := Kick(1)
	assert.Equal(t, audio.Sine, k.Source)
	assert.Equal(t, audio.Ramp{From: 120, To: 55, Start: 1, End: 1.12}, k.Freq)
	assert.Equal(t, 0.9, k.Gain.From)
	assert.InDelta(t, 1.16, k.Gain.End, 1e-12)
	assert.InDelta(t, 0.2, k.Duration(), 1e-12)

	s := Snare(1, noise)
	assert.Equal(t, audio.Noise, s.Source)
	assert.Equal(t, 1200.0, s.Highpass)
	assert.Equal(t, 0.6, s.Gain.From)
	assert.InDelta(t, 1.12, s.Gain.End, 1e-12)
	assert.InDelta(t, 0.2, s.Duration(), 1e-12)

	h := Hat(1, noise)
	assert.Equal(t, 7000.0, h.Highpass)
	assert.Equal(t, 0.2, h.Gain.From)
	assert.InDelta(t, 1.05, h.Gain.End, 1e-12)
	assert.InDelta(t, 0.08, h.Duration(), 1e-12)

	o := OffHat(1, noise)
	assert.Equal(t, 8000.0, o.Highpass)
	assert.Equal(t, 0.16, o.Gain.From)
	assert.InDelta(t, 0.08, o.Duration(), 1e-12)
}

// --- Pump ---

func mustNew(t *testing.T, target Target, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(target, audio.NewNoiseBuffer(1000), cfg)
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	negative := DefaultConfig()
	negative.BPM = -120
	zero := DefaultConfig()
	zero.BPM = 0
	late := DefaultConfig()
	late.StartOffset = -200 * time.Millisecond

	for name, cfg := range map[string]Config{"negative bpm": negative, "zero bpm": zero, "negative offset": late} {
		target := &fakeTarget{}
		s, err := New(target, audio.NewNoiseBuffer(1000), cfg)
		assert.Error(t, err, name)
		assert.Nil(t, s, name)
		assert.Empty(t, target.snapshot(), name)
	}
}

func TestNewStartsAfterOffset(t *testing.T) {
	target := &fakeTarget{now: 3}
	s := mustNew(t, target, DefaultConfig())
	st := s.Status()
	assert.InDelta(t, 3.05, st.NextEventTime, 1e-12)
	assert.Zero(t, st.BeatCount)
	assert.False(t, st.Stopped)
}

func TestPumpCommitsOnlyInsideWindow(t *testing.T) {
	target := &fakeTarget{}
	s := mustNew(t, target, DefaultConfig())

	assert.Equal(t, 1, s.Pump())
	assert.Len(t, target.snapshot(), 3)
	assert.Zero(t, s.Pump(), "next beat is outside the window")

	target.set(0.46)
	assert.Equal(t, 1, s.Pump())
	events := target.snapshot()
	require.Len(t, events, 6)
	assert.Equal(t, "snare", events[3].voice.Name)
	assert.InDelta(t, 0.55, events[3].voice.Start, 1e-12)
}

func TestPumpCatchesUpAfterStall(t *testing.T) {
	target := &fakeTarget{}
	s := mustNew(t, target, DefaultConfig())
	target.set(2)
	// beats at 0.05, 0.55, 1.05, 1.55, 2.05 are all before 2.1
	assert.Equal(t, 5, s.Pump())
	assert.Equal(t, 5, s.Status().BeatCount)
}

func simulate(t *testing.T, cfg Config, seconds float64, nextPoll func() time.Duration) []scheduled {
	t.Helper()
	target := &fakeTarget{}
	s := mustNew(t, target, cfg)

	block := audio.FrameDuration
	var wall, poll time.Duration
	end := time.Duration(seconds * float64(time.Second))
	for wall <= end {
		// the audio clock advances in whole render blocks
		target.set((wall / block * block).Seconds())
		if wall >= poll {
			s.Pump()
			poll = wall + nextPoll()
		}
		wall += time.Millisecond
	}
	return target.snapshot()
}

func TestNoBeatIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	events := simulate(t, cfg, 10, func() time.Duration { return cfg.Interval })

	for _, e := range events {
		require.Less(t, e.at, e.voice.Start, "%s at %.3f scheduled late (clock %.3f)", e.voice.Name, e.voice.Start, e.at)
	}

	var due []audio.Voice
	for _, v := range accents(events) {
		if v.Start < 10 {
			due = append(due, v)
		}
	}
	require.Len(t, due, 20)
	for i := 1; i < len(due); i++ {
		assert.InDelta(t, 0.5, due[i].Start-due[i-1].Start, 1e-9)
	}
}

func TestNoBeatIsSkippedUnderJitter(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(1))
	events := simulate(t, cfg, 30, func() time.Duration {
		return time.Duration(1+rng.Intn(int(cfg.Interval/time.Millisecond))) * time.Millisecond
	})

	for _, e := range events {
		require.Less(t, e.at, e.voice.Start, "%s at %.3f scheduled late", e.voice.Name, e.voice.Start)
	}
	count := 0
	for _, v := range accents(events) {
		if v.Start < 30 {
			count++
		}
	}
	assert.Equal(t, 60, count)
}

func TestEventsAreEmittedInBeatOrder(t *testing.T) {
	target := &fakeTarget{now: 5}
	s := mustNew(t, target, DefaultConfig())
	target.set(10)
	s.Pump()

	events := target.snapshot()
	prevBeat := -1.0
	for i := 0; i < len(events); i += 3 {
		start := events[i].voice.Start
		assert.Greater(t, start, prevBeat)
		for _, e := range events[i+1 : i+3] {
			assert.GreaterOrEqual(t, e.voice.Start, start)
		}
		prevBeat = start
	}
}

func TestClosedTargetStopsScheduler(t *testing.T) {
	ctx, err := audio.NewContext(1000, 1)
	require.NoError(t, err)
	s := mustNew(t, ctx, DefaultConfig())
	require.NoError(t, ctx.Close())

	assert.NotPanics(t, func() { s.Pump() })
	assert.True(t, s.Status().Stopped)
	assert.Zero(t, s.Status().BeatCount)
	assert.Zero(t, s.Pump())
}

func TestVoiceErrorsAreSkipped(t *testing.T) {
	target := &fakeTarget{fail: func(v audio.Voice) error {
		if v.Name == "hat" {
			return audio.ErrInvalidVoice
		}
		return nil
	}}
	s := mustNew(t, target, DefaultConfig())
	target.set(1)

	assert.Equal(t, 3, s.Pump())
	for _, e := range target.snapshot() {
		assert.NotEqual(t, "hat", e.voice.Name)
	}
	assert.Len(t, target.snapshot(), 6)
}

// --- Start / dispose ---

func TestStartPollsUntilDisposed(t *testing.T) {
	target := &fakeTarget{}
	s := mustNew(t, target, DefaultConfig())
	ticker := newManualTicker()
	dispose := s.Start(ticker)

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return len(target.snapshot()) == 3 }, time.Second, time.Millisecond)

	dispose()
	assert.NotPanics(t, dispose, "double dispose must be harmless")
	require.Eventually(t, ticker.isStopped, time.Second, time.Millisecond)

	target.set(100)
	assert.Zero(t, s.Pump())
	assert.Len(t, target.snapshot(), 3)
	assert.True(t, s.Status().Stopped)
}

func TestWallTicker(t *testing.T) {
	tk := NewWallTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("wall ticker never fired")
	}
}

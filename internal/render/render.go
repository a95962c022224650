// Package render bounces the percussion loop to a WAV file on simulated
// time, without a sound card or wall clock.
package render

import (
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
	"github.com/satindergrewal/lunabell/internal/beat"
	"github.com/satindergrewal/lunabell/internal/scene"
	"github.com/satindergrewal/lunabell/internal/scheduler"
)

// Options controls an offline render.
type Options struct {
	Duration   time.Duration
	SampleRate int
	MasterGain float64
	FPS        int // simulated display refresh for the beat clock
	Scheduler  scheduler.Config
}

// DefaultOptions renders 16 seconds, enough to reach the end scene at
// 120 BPM.
func DefaultOptions() Options {
	return Options{
		Duration:   16 * time.Second,
		SampleRate: audio.SampleRate,
		MasterGain: audio.DefaultMasterGain,
		FPS:        60,
		Scheduler:  scheduler.DefaultConfig(),
	}
}

// Cue marks the first beat of a scene on the render timeline.
type Cue struct {
	At    time.Duration `json:"at"`
	Beat  int           `json:"beat"`
	Scene scene.Scene   `json:"scene"`
}

// Summary describes a finished render.
type Summary struct {
	Frames    int64   `json:"frames"` // sample frames per channel
	Beats     int     `json:"beats"`  // beats committed by the scheduler
	LastBeat  int     `json:"last_beat"`
	Cues      []Cue   `json:"cues"`
	AudioTime float64 `json:"audio_time"`
}

// Bounce renders opts.Duration of the loop as 16-bit stereo PCM into w.
func Bounce(w io.WriteSeeker, opts Options) (Summary, error) {
	var sum Summary
	if opts.Duration <= 0 {
		return sum, fmt.Errorf("render: duration must be positive, got %v", opts.Duration)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.SampleRate
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	graph, err := audio.NewContext(opts.SampleRate, opts.MasterGain)
	if err != nil {
		return sum, fmt.Errorf("render: %w", err)
	}
	defer graph.Close()

	sched, err := scheduler.New(graph, audio.NewNoiseBuffer(opts.SampleRate), opts.Scheduler)
	if err != nil {
		return sum, fmt.Errorf("render: %w", err)
	}

	// The clock only needs to be active; frames are fed to it directly.
	clock := beat.NewClock(opts.Scheduler.BPM)
	clock.Activate(beat.ChanSource(nil))
	defer clock.Deactivate()

	enc := wav.NewEncoder(w, opts.SampleRate, audio.BitDepth, audio.Channels, 1)

	block := int(int64(opts.SampleRate) * int64(audio.FrameDuration) / int64(time.Second))
	total := int64(opts.Duration.Seconds() * float64(opts.SampleRate))
	mono := make([]float64, block)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: audio.Channels,
			SampleRate:  opts.SampleRate,
		},
		Data:           make([]int, block*audio.Channels),
		SourceBitDepth: audio.BitDepth,
	}

	frameStep := time.Second / time.Duration(opts.FPS)
	var nextPoll, nextFrame time.Duration
	current := scene.Scene(-1)

	for sum.Frames < total {
		now := time.Duration(graph.CurrentTime() * float64(time.Second))
		for nextPoll <= now {
			sched.Pump()
			nextPoll += opts.Scheduler.Interval
		}

		n := block
		if rest := total - sum.Frames; rest < int64(n) {
			n = int(rest)
		}
		graph.Render(mono[:n])
		pcm := audio.ToPCM(mono[:n])
		buf.Data = buf.Data[:len(pcm)]
		for i, s := range pcm {
			buf.Data[i] = int(s)
		}
		if err := enc.Write(buf); err != nil {
			return sum, fmt.Errorf("render: write: %w", err)
		}
		sum.Frames += int64(n)

		end := time.Duration(graph.CurrentTime() * float64(time.Second))
		for ; nextFrame < end; nextFrame += frameStep {
			b := clock.Frame(nextFrame)
			if sc := scene.For(b); sc != current {
				current = sc
				sum.Cues = append(sum.Cues, Cue{At: nextFrame, Beat: b, Scene: sc})
			}
		}
	}

	if err := enc.Close(); err != nil {
		return sum, fmt.Errorf("render: close: %w", err)
	}

	st := sched.Status()
	sum.Beats = st.BeatCount
	sum.LastBeat = clock.Beat()
	sum.AudioTime = graph.CurrentTime()
	log.Debug().
		Int64("frames", sum.Frames).
		Int("beats", sum.Beats).
		Int("cues", len(sum.Cues)).
		Msg("render finished")
	return sum, nil
}

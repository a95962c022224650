package audio

import "math"

// Source selects what a voice plays.
type Source int

const (
	// Sine is an oscillator whose frequency follows Voice.Freq.
	Sine Source = iota
	// Noise plays Voice.Buffer from its first sample.
	Noise
)

func (s Source) String() string {
	switch s {
	case Sine:
		return "sine"
	case Noise:
		return "noise"
	default:
		return "unknown"
	}
}

// Voice describes one fire-and-forget sound event on the context clock.
// Start and Stop are absolute times in seconds. Highpass is a cutoff in Hz,
// zero for none.
type Voice struct {
	Name     string
	Source   Source
	Buffer   *NoiseBuffer
	Start    float64
	Stop     float64
	Freq     Ramp
	Gain     Ramp
	Highpass float64

	phase  float64
	filter *biquad
}

// Duration returns the scheduled length of the voice in seconds.
func (v Voice) Duration() float64 { return v.Stop - v.Start }

func (v Voice) validate() bool {
	if v.Stop <= v.Start || v.Start < 0 {
		return false
	}
	if v.Source == Noise && v.Buffer == nil {
		return false
	}
	return v.Source == Sine || v.Source == Noise
}

// render adds the voice into dst, whose first sample sits at frame0 on the
// context clock. It reports whether the voice has finished.
func (v *Voice) render(dst []float64, frame0 int64, sr float64) bool {
	for i := range dst {
		t := float64(frame0+int64(i)) / sr
		if t < v.Start {
			continue
		}
		if t >= v.Stop {
			return true
		}

		var x float64
		switch v.Source {
		case Sine:
			x = math.Sin(v.phase)
			v.phase += 2 * math.Pi * v.Freq.At(t) / sr
		case Noise:
			x = v.Buffer.At(int(math.Round((t - v.Start) * float64(v.Buffer.SampleRate()))))
		}
		if v.filter != nil {
			x = v.filter.process(x)
		}
		dst[i] += x * v.Gain.At(t)
	}
	return float64(frame0+int64(len(dst)))/sr >= v.Stop
}

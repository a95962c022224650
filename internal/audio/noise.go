package audio

import (
	"math/rand"
	"time"
)

// NoiseBuffer holds one second of white noise. It is read-only after
// construction, so any number of scheduled voices may share it.
type NoiseBuffer struct {
	samples    []float64
	sampleRate int
}

// NewNoiseBuffer fills one second of uniform samples in [-1, 1).
func NewNoiseBuffer(sampleRate int) *NoiseBuffer {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	samples := make([]float64, sampleRate)
	for i := range samples {
		samples[i] = rand.Float64()*2 - 1
	}
	return &NoiseBuffer{samples: samples, sampleRate: sampleRate}
}

// Len returns the number of samples in the buffer.
func (b *NoiseBuffer) Len() int { return len(b.samples) }

// At returns sample i, or 0 past the end of the buffer.
func (b *NoiseBuffer) At(i int) float64 {
	if i < 0 || i >= len(b.samples) {
		return 0
	}
	return b.samples[i]
}

// SampleRate returns the rate the buffer was generated for.
func (b *NoiseBuffer) SampleRate() int { return b.sampleRate }

// Duration returns the playback length of the buffer.
func (b *NoiseBuffer) Duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

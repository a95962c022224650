package audio

import "math"

// highpassQ is the linear resonance of a 1 dB biquad, the usual default for
// browser high-pass nodes.
var highpassQ = math.Pow(10, 1.0/20)

// biquad is a second-order section in Direct Form II Transposed:
//
//	y  = b0*x + d0
//	d0 = b1*x - a1*y + d1
//	d1 = b2*x - a2*y
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	d0, d1     float64
}

// newHighpass designs an RBJ high-pass section. It returns nil when the
// cutoff is outside (0, nyquist), which callers treat as a bypass.
func newHighpass(freq, sampleRate float64) *biquad {
	if freq <= 0 || sampleRate <= 0 || freq >= sampleRate/2 {
		return nil
	}
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * highpassQ)

	a0 := 1 + alpha
	return &biquad{
		b0: (1 + cw) / 2 / a0,
		b1: -(1 + cw) / a0,
		b2: (1 + cw) / 2 / a0,
		a1: -2 * cw / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.d0
	f.d0 = f.b1*x - f.a1*y + f.d1
	f.d1 = f.b2*x - f.a2*y
	return y
}

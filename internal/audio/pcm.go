package audio

import "encoding/binary"

// ToPCM converts a mono float mix in [-1,1] into interleaved stereo int16
// samples. Out-of-range values are clipped.
func ToPCM(mono []float64) []int16 {
	out := make([]int16, len(mono)*Channels)
	for i, v := range mono {
		s := v * 32767
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		for c := 0; c < Channels; c++ {
			out[i*Channels+c] = int16(s)
		}
	}
	return out
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
